package utils

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    string
		want    float64
		wantErr bool
	}{
		{"NTSC", "30000/1001", 29.97002997, false},
		{"Whole fraction", "25/1", 25, false},
		{"Plain number", "60", 60, false},
		{"Whitespace", " 24/1\n", 24, false},
		{"Zero denominator", "30/0", 0, true},
		{"Zero rate", "0/0", 0, true},
		{"Garbage", "fast", 0, true},
		{"Bad denominator", "30/x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrameRate(tt.rate)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrameRate(%q) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ParseFrameRate(%q) = %v, want %v", tt.rate, got, tt.want)
			}
		})
	}
}

func TestNewFFmpegRawDecoderArgs(t *testing.T) {
	ctx := context.Background()

	file := NewFFmpegRawDecoder(ctx, "clip.mp4", "")
	if slices.Contains(file.Args, "-f") && file.Args[slices.Index(file.Args, "-f")+1] != "rawvideo" {
		t.Errorf("file input should not set an input format: %v", file.Args)
	}
	if !hasSequence(file.Args, "-i", "clip.mp4") || !hasSequence(file.Args, "-pix_fmt", "rgba") {
		t.Errorf("unexpected decoder args: %v", file.Args)
	}
	if file.Args[len(file.Args)-1] != "-" {
		t.Errorf("decoder should write to stdout, args: %v", file.Args)
	}

	dev := NewFFmpegRawDecoder(ctx, "/dev/video0", "v4l2")
	fi, ii := slices.Index(dev.Args, "v4l2"), slices.Index(dev.Args, "-i")
	if fi < 0 || ii < 0 || fi > ii {
		t.Errorf("input format must precede -i: %v", dev.Args)
	}
	if dev.Stderr == nil || dev.Cmd.Stderr != dev.Stderr {
		t.Error("decoder stderr should be captured")
	}
}

func TestNewFFmpegEncoderArgs(t *testing.T) {
	enc := NewFFmpegEncoder(context.Background(), "out.mp4", 29.97, 640, 480)

	for _, pair := range [][2]string{
		{"-s", "640x480"},
		{"-r", "29.970"},
		{"-pix_fmt", "rgba"},
		{"-i", "-"},
		{"-c:v", "libx264"},
	} {
		if !hasSequence(enc.Args, pair[0], pair[1]) {
			t.Errorf("encoder args missing %s %s: %v", pair[0], pair[1], enc.Args)
		}
	}
	if enc.Args[len(enc.Args)-1] != "out.mp4" {
		t.Errorf("output should be the last argument: %v", enc.Args)
	}
}

func TestShowErrorWithoutProcess(t *testing.T) {
	// Must not panic on a nil command or a nil error.
	ShowError("test context", errors.New("boom"), nil)
	ShowError("test context", nil, NewSafeCommand(context.Background(), "true"))
}

func hasSequence(args []string, a, b string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == a && args[i+1] == b {
			return true
		}
	}
	return false
}
