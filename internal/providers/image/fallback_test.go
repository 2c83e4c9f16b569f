package image

import (
	"context"
	"errors"
	"testing"
)

type stubRenderer struct {
	name      string
	img       *RenderedImage
	err       error
	available bool
	calls     int
}

func (s *stubRenderer) Name() string { return s.name }

func (s *stubRenderer) Available() bool { return s.available }

func (s *stubRenderer) Render(ctx context.Context, req RenderRequest) (*RenderedImage, error) {
	s.calls++
	return s.img, s.err
}

func TestFallbackRenderer(t *testing.T) {
	okImg := &RenderedImage{Provider: "backup"}
	cases := []struct {
		name          string
		primary       *stubRenderer
		wantErr       bool
		wantFallback  int
		wantReason    string
		wantPrimaryNo int
	}{
		{
			name:          "primary succeeds",
			primary:       &stubRenderer{name: "qwen", available: true, img: &RenderedImage{Provider: "qwen"}},
			wantPrimaryNo: 1,
		},
		{
			name:         "primary unavailable",
			primary:      &stubRenderer{name: "qwen"},
			wantFallback: 1,
			wantReason:   "missing_credentials",
		},
		{
			name:          "terminal primary error",
			primary:       &stubRenderer{name: "qwen", available: true, err: &RenderError{Provider: "qwen", StatusCode: 403, Err: errors.New("forbidden")}},
			wantFallback:  1,
			wantReason:    "primary_failed",
			wantPrimaryNo: 1,
		},
		{
			name:          "retryable primary error surfaces",
			primary:       &stubRenderer{name: "qwen", available: true, err: &RenderError{Provider: "qwen", StatusCode: 503, Retryable: true, Err: errors.New("busy")}},
			wantErr:       true,
			wantPrimaryNo: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backup := &stubRenderer{name: "backup", available: true, img: okImg}
			var reasons []string
			f := NewFallbackRenderer(tc.primary, backup, func(reason string, _ error) { reasons = append(reasons, reason) })
			_, err := f.Render(context.Background(), RenderRequest{Prompt: "x"})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if backup.calls != tc.wantFallback {
				t.Fatalf("fallback calls = %d, want %d", backup.calls, tc.wantFallback)
			}
			if tc.primary.calls != tc.wantPrimaryNo {
				t.Fatalf("primary calls = %d, want %d", tc.primary.calls, tc.wantPrimaryNo)
			}
			if tc.wantReason != "" && (len(reasons) != 1 || reasons[0] != tc.wantReason) {
				t.Fatalf("reasons = %v", reasons)
			}
		})
	}
}

func TestFallbackRendererWithoutBackup(t *testing.T) {
	f := NewFallbackRenderer(&stubRenderer{name: "qwen"}, nil, nil)
	if _, err := f.Render(context.Background(), RenderRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if f.Name() != "qwen" {
		t.Fatalf("name = %q", f.Name())
	}
}
