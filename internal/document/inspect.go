package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxUploadSize matches the service's request limit.
const MaxUploadSize = 50 << 20

var (
	ErrNotPDF   = errors.New("only PDF files are accepted")
	ErrTooLarge = errors.New("file is too large: max size is 50MB")
)

// Info describes a local PDF that passed the pre-upload checks.
type Info struct {
	Path  string
	Name  string
	Size  int64
	Pages int
}

// Inspect checks that path is a readable PDF within the upload limit.
func Inspect(path string) (Info, error) {
	return InspectWithLimit(path, MaxUploadSize)
}

func InspectWithLimit(path string, limit int64) (Info, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return Info{}, ErrNotPDF
	}
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	if st.IsDir() {
		return Info{}, ErrNotPDF
	}
	if st.Size() > limit {
		return Info{}, ErrTooLarge
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	pages, err := countPages(f, st.Size())
	if err != nil {
		return Info{}, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	return Info{
		Path:  path,
		Name:  filepath.Base(path),
		Size:  st.Size(),
		Pages: pages,
	}, nil
}

// countPages parses the document structure. The pdf reader panics on some
// malformed files (a startxref past EOF, broken object streams), so panics
// come back as errors.
func countPages(f io.ReaderAt, size int64) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("malformed pdf: %w", e)
			} else {
				err = fmt.Errorf("malformed pdf: %v", r)
			}
		}
	}()
	r, err := pdf.NewReader(f, size)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// HumanSize formats n the way the service reports sizes.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
