package x11

import (
	"errors"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// IsBadWindow reports whether err says the target window (or a resource
// that died with it, like its damage object) no longer exists.
func IsBadWindow(err error) bool {
	if err == nil {
		return false
	}
	var windowErr xproto.WindowError
	if errors.As(err, &windowErr) {
		return true
	}
	var drawableErr xproto.DrawableError
	if errors.As(err, &drawableErr) {
		return true
	}
	var xerr xgb.Error
	if errors.As(err, &xerr) {
		return strings.HasPrefix(xerr.Error(), "BadBadDamage") ||
			strings.HasPrefix(xerr.Error(), "BadDamage")
	}
	return false
}

// IgnoreBadWindow drops errors about windows that are already gone.
func IgnoreBadWindow(err error) error {
	if IsBadWindow(err) {
		return nil
	}
	return err
}
