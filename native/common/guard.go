package common

import coreerrors "crosshub/core/errors"

var ErrModulePaused = coreerrors.New(coreerrors.KindValidation, "module_paused", "module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
