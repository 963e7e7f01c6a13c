// Package fwimage opens raw 8051 firmware images and maps them into CODE
// space.
package fwimage

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"fwhelper/internal/program"
)

// codeSpace is the size of the 8051 program address space.
const codeSpace = 0x10000

// ErrEmpty is returned for images with no code bytes.
var ErrEmpty = errors.New("empty firmware image")

// Options describes where the code lives in the file.
type Options struct {
	Base     uint32 // CODE address of the first code byte
	Offset   uint64 // file offset of the first code byte (header size)
	CodeSize uint64 // number of code bytes; 0 means the rest of the file
	// Container reads Offset and CodeSize from the vendor firmware
	// container instead, after checking its magic and checksum.
	Container bool
}

// Section is a file range mapped at a CODE address.
type Section struct {
	Name          string
	VA, Off, Size uint64
}

type Image struct {
	Path string
	All  []byte
	Code Section
	// Tail holds file bytes past the code region, if any. They are not
	// loaded into the program database.
	Tail Section
	// Container is set when the image was opened with Options.Container.
	Container *Container
	f         *os.File
}

// Open maps the file at path read-only.
func Open(path string, opts Options) (*Image, error) {
	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if fi.Size() == 0 {
		of.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, All: all, f: of}
	if err := im.layout(opts); err != nil {
		im.Close()
		return nil, err
	}
	return im, nil
}

// FromBytes wraps an in-memory image.
func FromBytes(data []byte, opts Options) (*Image, error) {
	im := &Image{Path: "<memory>", All: data}
	if err := im.layout(opts); err != nil {
		return nil, err
	}
	return im, nil
}

func (im *Image) layout(opts Options) error {
	if opts.Container {
		c, err := ParseContainer(im.All)
		if err != nil {
			return err
		}
		if c.CodeSize == 0 {
			return fmt.Errorf("container: %w", ErrEmpty)
		}
		im.Container = &c
		opts.Offset, opts.CodeSize = containerHeader, uint64(c.CodeSize)
	}

	size := uint64(len(im.All))
	if opts.Offset >= size {
		return fmt.Errorf("code offset %#x past end of %d-byte image: %w", opts.Offset, size, ErrEmpty)
	}
	if opts.Base >= codeSpace {
		return fmt.Errorf("base %#x outside CODE space", opts.Base)
	}

	code := size - opts.Offset
	if opts.CodeSize > 0 {
		if opts.CodeSize > code {
			return fmt.Errorf("code size %#x exceeds the %#x bytes after offset %#x", opts.CodeSize, code, opts.Offset)
		}
		code = opts.CodeSize
	}
	code = min(code, codeSpace-uint64(opts.Base))

	im.Code = Section{"CODE", uint64(opts.Base), opts.Offset, code}
	if end := opts.Offset + code; end < size {
		im.Tail = Section{"TAIL", 0, end, size - end}
	}
	return nil
}

// Close unmaps the memory and closes the underlying file.
func (im *Image) Close() error {
	if im.f == nil {
		return nil
	}
	var err1 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	err2 := im.f.Close()
	im.f = nil
	if err1 != nil {
		return err1
	}
	return err2
}

// VA2Off translates a CODE address into a file offset. It returns false if
// the address is outside the code region.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	if va >= im.Code.VA && va < im.Code.VA+im.Code.Size {
		return im.Code.Off + (va - im.Code.VA), true
	}
	return 0, false
}

// SliceVA returns the mapped bytes for [va, va+size).
// It returns (nil, false) if the range leaves the code region.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	if va+size > im.Code.VA+im.Code.Size {
		return nil, false
	}
	return im.All[off : off+size], true
}

// Blocks returns the memory blocks to load into a program database. The
// bytes alias the mapping and stay valid until Close.
func (im *Image) Blocks() []program.Block {
	code, _ := im.SliceVA(im.Code.VA, im.Code.Size)
	return []program.Block{{
		Name:       im.Code.Name,
		Start:      program.Code(uint32(im.Code.VA)),
		Data:       code,
		Executable: true,
	}}
}
