package renderer

import "errors"

var (
	ErrInvalidOptions   = errors.New("renderer: invalid options")
	ErrNoKernel         = errors.New("renderer: no kernel defined")
	ErrInvalidTarget    = errors.New("renderer: invalid render target")
	ErrSceneNotDefined  = errors.New("renderer: no scene defined")
	ErrEmptyScene       = errors.New("renderer: scene has no objects")
	ErrCameraNotDefined = errors.New("renderer: no camera defined")
	ErrSessionClosed    = errors.New("renderer: session closed")
)
