package ftp

import "io"

// progressReader counts bytes as they come off the data channel and
// reports the running total to the callback installed by WithProgress.
type progressReader struct {
	r     io.Reader
	fn    func(bytesTransferred int64)
	total int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.total += int64(n)
		p.fn(p.total)
	}
	return n, err
}

// progressWriter is the upload-side counterpart of progressReader.
type progressWriter struct {
	w     io.Writer
	fn    func(bytesTransferred int64)
	total int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.total += int64(n)
		p.fn(p.total)
	}
	return n, err
}
