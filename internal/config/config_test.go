package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given the config package", t, func() {
		tempDir, err := os.MkdirTemp("", "config_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		Convey("When loading a valid config", func() {
			path := writeConfig(t, tempDir, `
app:
  name: sarsync-test
processor:
  command: /opt/sar/process
archive:
  path: /data/archive
targets:
  - type: rsync
    enabled: true
    user: geodesy
    host: ftp.example.edu
    path: /archive/
`)
			cfg, err := Load(path)

			Convey("It should load and apply defaults", func() {
				So(err, ShouldBeNil)
				So(cfg, ShouldNotBeNil)
				So(cfg.App.Name, ShouldEqual, "sarsync-test")
				So(cfg.App.LogLevel, ShouldEqual, "info")
				So(cfg.Processor.Enabled, ShouldBeTrue)
				So(cfg.Processor.TimeoutMinutes, ShouldEqual, 120)
				So(cfg.Pipeline.DeleteAfterSync, ShouldBeTrue)
				So(cfg.Pipeline.LockFile, ShouldNotBeEmpty)
				So(cfg.Notify.NotifyOn, ShouldEqual, "failure")
			})

			Convey("It should report the enabled targets", func() {
				So(err, ShouldBeNil)
				targets := cfg.GetEnabledTargets()
				So(len(targets), ShouldEqual, 1)
				So(targets[0].Type, ShouldEqual, "rsync")
				So(targets[0].DisplayName(), ShouldEqual, "rsync")
			})
		})

		Convey("When the config file does not exist", func() {
			_, err := Load(filepath.Join(tempDir, "missing.yaml"))

			Convey("It should return a read error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to read config")
			})
		})

		Convey("When the archive path is missing", func() {
			path := writeConfig(t, tempDir, `
processor:
  command: /opt/sar/process
targets:
  - type: rsync
    enabled: true
    host: ftp.example.edu
    path: /archive/
`)
			_, err := Load(path)

			Convey("It should fail validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "archive.path is required")
			})
		})

		Convey("When the processor is enabled without a command", func() {
			path := writeConfig(t, tempDir, `
archive:
  path: /data/archive
targets:
  - type: rsync
    enabled: true
    host: ftp.example.edu
    path: /archive/
`)
			_, err := Load(path)

			Convey("It should fail validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "processor.command is required")
			})
		})

		Convey("When no target is enabled", func() {
			path := writeConfig(t, tempDir, `
processor:
  command: /opt/sar/process
archive:
  path: /data/archive
targets:
  - type: rsync
    enabled: false
    host: ftp.example.edu
    path: /archive/
`)
			_, err := Load(path)

			Convey("It should fail validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "at least one enabled transfer target")
			})
		})

		Convey("When an rsync target has no host", func() {
			path := writeConfig(t, tempDir, `
processor:
  command: /opt/sar/process
archive:
  path: /data/archive
targets:
  - type: rsync
    enabled: true
    path: /archive/
`)
			_, err := Load(path)

			Convey("It should fail validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "host is required for rsync")
			})
		})

		Convey("When an s3 target has no bucket", func() {
			path := writeConfig(t, tempDir, `
processor:
  command: /opt/sar/process
archive:
  path: /data/archive
targets:
  - type: s3
    enabled: true
    region: us-west-2
`)
			_, err := Load(path)

			Convey("It should fail validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "bucket is required for s3")
			})
		})

		Convey("When a target has an unknown type", func() {
			path := writeConfig(t, tempDir, `
processor:
  command: /opt/sar/process
archive:
  path: /data/archive
targets:
  - type: carrier-pigeon
    enabled: true
`)
			_, err := Load(path)

			Convey("It should fail validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown type")
			})
		})

		Convey("When notify is enabled without a token", func() {
			path := writeConfig(t, tempDir, `
processor:
  command: /opt/sar/process
archive:
  path: /data/archive
targets:
  - type: rsync
    enabled: true
    host: ftp.example.edu
    path: /archive/
notify:
  enabled: true
  chat_id: "42"
`)
			_, err := Load(path)

			Convey("It should fail validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "notify.bot_token is required")
			})
		})
	})
}
