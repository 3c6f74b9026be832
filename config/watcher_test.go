package config

import (
	"context"
	"os"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/gridnav/logging"
)

func TestWatcher(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := writeConfig(t, `{"log": {"debug": false}}`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	watcher, err := NewWatcher(ctx, path, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, watcher.Close(), test.ShouldBeNil)
	}()

	// an invalid write is logged and skipped
	test.That(t, os.WriteFile(path, []byte(`{"robot": {"car_length": -1}}`), 0o600), test.ShouldBeNil)
	time.Sleep(2 * reloadDebounce)
	test.That(t, os.WriteFile(path, []byte(`{"log": {"debug": true}}`), 0o600), test.ShouldBeNil)

	select {
	case cfg := <-watcher.Config():
		test.That(t, cfg.Log.Debug, test.ShouldBeTrue)
		test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	case <-ctx.Done():
		t.Fatal("timed out waiting for a config reload")
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	_, err := NewWatcher(context.Background(), "/does/not/exist/gridnav.json", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFileConfigDebug(t *testing.T) {
	logger := logging.NewTestLogger(t)
	defer InitLoggingSettings(logger, false)

	InitLoggingSettings(logger, false)
	test.That(t, logging.GlobalLogLevel.Level().String(), test.ShouldEqual, "info")

	UpdateFileConfigDebug(true)
	test.That(t, logging.GlobalLogLevel.Level().String(), test.ShouldEqual, "debug")

	UpdateFileConfigDebug(false)
	test.That(t, logging.GlobalLogLevel.Level().String(), test.ShouldEqual, "info")

	InitLoggingSettings(logger, true)
	UpdateFileConfigDebug(false)
	test.That(t, logging.GlobalLogLevel.Level().String(), test.ShouldEqual, "debug")
}
