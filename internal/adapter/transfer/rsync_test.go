package transfer

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/avo-tools/sarsync/internal/config"
)

func TestRsyncTransfer(t *testing.T) {
	Convey("Given an rsync target", t, func() {
		cfg := &config.TargetConfig{
			Type: "rsync",
			User: "geodesy",
			Host: "ftp.example.edu",
			Path: "/archive/TerraSAR-X/",
		}
		r := NewRsync(cfg, "/data/sar/archive")

		Convey("buildArgs", func() {
			Convey("When building a transfer invocation", func() {
				args := r.buildArgs(false)

				Convey("It should use delta flags, itemization, and contents semantics", func() {
					So(args[0], ShouldEqual, "-rlptz")
					So(args, ShouldContain, "--out-format=%i %n")
					So(args, ShouldNotContain, "--dry-run")

					// Trailing slash copies the directory's contents.
					So(args[len(args)-2], ShouldEqual, "/data/sar/archive/")
					So(args[len(args)-1], ShouldEqual, "geodesy@ftp.example.edu:/archive/TerraSAR-X/")
				})
			})

			Convey("When building a verification invocation", func() {
				args := r.buildArgs(true)

				Convey("It should add --dry-run", func() {
					So(args, ShouldContain, "--dry-run")
				})
			})

			Convey("When a timeout and ssh options are configured", func() {
				cfg.TimeoutSeconds = 600
				cfg.SSHOptions = []string{"-oBatchMode=yes", "-p2222"}
				args := NewRsync(cfg, "/data/sar/archive").buildArgs(false)

				Convey("It should pass them through", func() {
					So(args, ShouldContain, "--timeout=600")
					So(strings.Join(args, " "), ShouldContainSubstring, "-e ssh -oBatchMode=yes -p2222")
				})
			})

			Convey("When no user is configured", func() {
				cfg.User = ""
				args := NewRsync(cfg, "/data/sar/archive").buildArgs(false)

				Convey("It should omit the user from the destination", func() {
					So(args[len(args)-1], ShouldEqual, "ftp.example.edu:/archive/TerraSAR-X/")
				})
			})
		})

		Convey("parseItemized", func() {
			Convey("When parsing transfer output", func() {
				output := []byte(strings.Join([]string{
					">f+++++++++ b.zip",
					"cd+++++++++ Orbit 139-ASC/",
					"cd+++++++++ Orbit 139-ASC/20260830/",
					">f+++++++++ Orbit 139-ASC/20260830/a.zip",
					">f.st...... changed.zip",
					"",
				}, "\n"))

				files := parseItemized(output)

				Convey("It should return file paths and skip directories", func() {
					So(len(files), ShouldEqual, 3)
					So(files["b.zip"], ShouldBeTrue)
					So(files["Orbit 139-ASC/20260830/a.zip"], ShouldBeTrue)
					So(files["changed.zip"], ShouldBeTrue)
					So(files["Orbit 139-ASC"], ShouldBeFalse)
				})
			})

			Convey("When the output is empty", func() {
				files := parseItemized(nil)

				Convey("It should return no files", func() {
					So(len(files), ShouldEqual, 0)
				})
			})

			Convey("When a line is malformed", func() {
				files := parseItemized([]byte("garbage\n>f\n"))

				Convey("It should ignore it", func() {
					So(len(files), ShouldEqual, 0)
				})
			})
		})
	})
}
