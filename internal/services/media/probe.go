package media

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

func probeDimensions(data []byte) (int, int, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// progressReader reports whole percentages as the host consumes the body.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func newProgressReader(r io.Reader, total int64, report func(int)) io.Reader {
	if report == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, last: -1, report: report}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	pct := int(p.read * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct != p.last {
		p.last = pct
		p.report(pct)
	}
	return n, err
}
