package executor

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/model"
)

// killGracePeriod is how long runConversion waits after sending a
// terminate signal before escalating to kill.
const killGracePeriod = 3 * time.Second

// runConversion invokes action's declared conversion tool as a
// subprocess, polling for exit every 100ms. On
// cancellation it sends a terminate signal, escalates to kill after
// killGracePeriod, and removes whatever partial output the tool left
// behind. On success it requires dst to exist, then deletes src in move
// mode and leaves it in place in copy mode.
func runConversion(action model.SortAction, src, dst string, mode model.Mode, token *cancelctl.Token) error {
	args := interpolateArgs(action.ConversionArgs, src, dst)
	cmd := exec.Command(action.ConversionTool, args...)

	if err := cmd.Start(); err != nil {
		return model.NewError(model.KindConversionFailed, action.InputPath, errors.Wrap(err, "start conversion tool"))
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var waitErr error
	cancelledMidFlight := false
waitLoop:
	for {
		select {
		case waitErr = <-done:
			break waitLoop
		case <-ticker.C:
			if token.Cancelled() {
				cancelledMidFlight = true
				waitErr = terminateThenKill(cmd, done)
				break waitLoop
			}
		}
	}

	if cancelledMidFlight {
		removePartialOutput(dst)
		return model.NewError(model.KindCancelled, action.InputPath, errors.New("conversion cancelled"))
	}
	if waitErr != nil {
		removePartialOutput(dst)
		return model.NewError(model.KindConversionFailed, action.InputPath, errors.Wrap(waitErr, "conversion tool exited with error"))
	}

	if _, err := os.Stat(dst); err != nil {
		removePartialOutput(dst)
		return model.NewError(model.KindConversionFailed, action.InputPath, errors.New("conversion tool did not produce its declared output"))
	}

	if mode == model.ModeMove {
		if err := os.Remove(src); err != nil {
			glog.Errorf("executor: conversion succeeded but failed to remove source %s: %v", src, err)
		}
	}
	return nil
}

func terminateThenKill(cmd *exec.Cmd, done chan error) error {
	if cmd.Process != nil {
		cmd.Process.Signal(syscall.SIGTERM) //nolint:errcheck
	}
	select {
	case err := <-done:
		return err
	case <-time.After(killGracePeriod):
		if cmd.Process != nil {
			cmd.Process.Kill() //nolint:errcheck
		}
		return <-done
	}
}

func removePartialOutput(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		glog.Errorf("executor: failed to clean up partial conversion output %s: %v", path, err)
	}
}

// interpolateArgs substitutes {src}/{dst} tokens in each arg verbatim;
// args without either token pass through unchanged.
func interpolateArgs(args []string, src, dst string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, "{src}", src)
		a = strings.ReplaceAll(a, "{dst}", dst)
		out[i] = a
	}
	return out
}
