package main

import (
	"github.com/andresmejia3/skingrid/cmd"
	"github.com/andresmejia3/skingrid/internal/capture"
	"github.com/andresmejia3/skingrid/internal/pipeline"
)

func main() {
	cmd.SetBackend(cmd.Backend{
		OpenCamera: func(device string, width, height int) (pipeline.Source, error) {
			cam, err := capture.OpenCamera(device, width, height)
			if err != nil {
				return nil, err
			}
			return cam, nil
		},
		NewWindow: func(title string, quitKey rune) cmd.Window {
			return capture.NewWindow(title, quitKey)
		},
	})
	cmd.Execute()
}
