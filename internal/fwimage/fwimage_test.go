package fwimage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fwhelper/internal/program"
)

func TestLayout(t *testing.T) {
	data := make([]byte, 0x100)
	tests := []struct {
		name     string
		opts     Options
		wantCode Section
		wantTail Section
		wantErr  bool
	}{
		{
			name:     "whole file",
			wantCode: Section{"CODE", 0, 0, 0x100},
		},
		{
			name:     "header and trailer",
			opts:     Options{Offset: 0x10, CodeSize: 0x80},
			wantCode: Section{"CODE", 0, 0x10, 0x80},
			wantTail: Section{"TAIL", 0, 0x90, 0x70},
		},
		{
			name:     "base",
			opts:     Options{Base: 0x8000},
			wantCode: Section{"CODE", 0x8000, 0, 0x100},
		},
		{
			name:     "clamped to code space",
			opts:     Options{Base: 0xffc0},
			wantCode: Section{"CODE", 0xffc0, 0, 0x40},
			wantTail: Section{"TAIL", 0, 0x40, 0xc0},
		},
		{name: "offset past end", opts: Options{Offset: 0x100}, wantErr: true},
		{name: "code size too large", opts: Options{CodeSize: 0x101}, wantErr: true},
		{name: "base outside code space", opts: Options{Base: 0x10000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, err := FromBytes(data, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromBytes error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if im.Code != tt.wantCode {
				t.Errorf("Code = %+v, want %+v", im.Code, tt.wantCode)
			}
			if im.Tail != tt.wantTail {
				t.Errorf("Tail = %+v, want %+v", im.Tail, tt.wantTail)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(path, []byte{0xaa, 0xbb, 0x02, 0x00, 0x10, 0x22}, 0o644); err != nil {
		t.Fatal(err)
	}

	im, err := Open(path, Options{Base: 0x100, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer im.Close()

	blocks := im.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	b := blocks[0]
	if b.Start != program.Code(0x100) || !b.Executable || len(b.Data) != 4 || b.Data[0] != 0x02 {
		t.Errorf("block = %+v", b)
	}
	if got, ok := im.SliceVA(0x102, 2); !ok || got[0] != 0x10 {
		t.Errorf("SliceVA(0x102) = %x, %v", got, ok)
	}
	if _, ok := im.SliceVA(0x103, 2); ok {
		t.Error("SliceVA past the code region succeeded")
	}
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, Options{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("Open error = %v, want ErrEmpty", err)
	}
}
