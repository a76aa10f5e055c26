package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLock(t *testing.T) {
	Convey("Given a lock file path", t, func() {
		tempDir, err := os.MkdirTemp("", "lockfile_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		path := filepath.Join(tempDir, "run.lock")

		Convey("When acquiring a free lock", func() {
			lock := New(path)
			err := lock.Acquire()

			Convey("It should succeed and record our pid", func() {
				So(err, ShouldBeNil)

				content, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(content), ShouldContainSubstring, strconv.Itoa(os.Getpid()))
			})

			Convey("Release should remove the lock file", func() {
				So(err, ShouldBeNil)
				So(lock.Release(), ShouldBeNil)

				_, statErr := os.Stat(path)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})

			Convey("Acquiring again without releasing should fail", func() {
				So(err, ShouldBeNil)
				So(lock.Acquire(), ShouldNotBeNil)
			})
		})

		Convey("When another live process holds the lock", func() {
			// Our own pid is as live as it gets.
			other := New(path)
			So(other.Acquire(), ShouldBeNil)
			defer other.Release()

			lock := New(path)
			err := lock.Acquire()

			Convey("It should refuse", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "another run holds the lock")
			})
		})

		Convey("When the lock is stale", func() {
			// pid 0 can never be a live pipeline run.
			So(os.WriteFile(path, []byte("0\n"), 0644), ShouldBeNil)

			lock := New(path)
			err := lock.Acquire()

			Convey("It should take the lock over", func() {
				So(err, ShouldBeNil)
				defer lock.Release()

				content, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(content), ShouldNotEqual, "0\n")
			})
		})

		Convey("When the lock file holds garbage", func() {
			So(os.WriteFile(path, []byte("not-a-pid\n"), 0644), ShouldBeNil)

			lock := New(path)
			err := lock.Acquire()

			Convey("It should report the unreadable lock", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unreadable")
			})
		})

		Convey("When releasing a lock that was never acquired", func() {
			lock := New(path)

			Convey("It should be a no-op", func() {
				So(lock.Release(), ShouldBeNil)
			})
		})
	})
}
