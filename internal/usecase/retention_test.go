package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeJanitor struct {
	old     []string
	listErr error
	delErr  error
	deleted []string
	cutoff  time.Time
}

func (j *fakeJanitor) ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	j.cutoff = cutoff
	return j.old, j.listErr
}

func (j *fakeJanitor) Delete(ctx context.Context, remoteName string) error {
	if j.delErr != nil {
		return j.delErr
	}
	j.deleted = append(j.deleted, remoteName)
	return nil
}

func TestRetention(t *testing.T) {
	Convey("Given a retention job", t, func() {
		ctx := context.Background()

		Convey("When a target has expired remote copies", func() {
			janitor := &fakeJanitor{old: []string{"old-1.zip", "old-2.zip"}}
			uc := NewRetention([]JanitorTarget{
				{Name: "s3", Janitor: janitor, RetentionDays: 30},
			}, fakeLogger{})

			err := uc.Execute(ctx)

			Convey("It should delete them", func() {
				So(err, ShouldBeNil)
				So(janitor.deleted, ShouldResemble, []string{"old-1.zip", "old-2.zip"})
			})

			Convey("It should use the target's retention window", func() {
				So(err, ShouldBeNil)
				expected := time.Now().AddDate(0, 0, -30)
				So(janitor.cutoff, ShouldHappenWithin, time.Minute, expected)
			})
		})

		Convey("When listing fails for one target", func() {
			broken := &fakeJanitor{listErr: errors.New("list failed")}
			healthy := &fakeJanitor{old: []string{"old.zip"}}

			uc := NewRetention([]JanitorTarget{
				{Name: "broken", Janitor: broken, RetentionDays: 7},
				{Name: "healthy", Janitor: healthy, RetentionDays: 7},
			}, fakeLogger{})

			err := uc.Execute(ctx)

			Convey("The other target should still be pruned", func() {
				So(err, ShouldBeNil)
				So(healthy.deleted, ShouldResemble, []string{"old.zip"})
			})
		})

		Convey("When deletion fails for one file", func() {
			janitor := &fakeJanitor{old: []string{"old.zip"}, delErr: errors.New("denied")}
			uc := NewRetention([]JanitorTarget{
				{Name: "s3", Janitor: janitor, RetentionDays: 7},
			}, fakeLogger{})

			err := uc.Execute(ctx)

			Convey("It should not abort the run", func() {
				So(err, ShouldBeNil)
				So(janitor.deleted, ShouldBeEmpty)
			})
		})

		Convey("When there are no janitor targets", func() {
			uc := NewRetention(nil, fakeLogger{})

			Convey("It should be a no-op", func() {
				So(uc.Execute(ctx), ShouldBeNil)
			})
		})
	})
}
