package transfer

import (
	"fmt"
	"io"
)

// ReportEvery is the byte interval between progress callbacks
const ReportEvery = 100 * 1024

// Progress is a callback for download progress updates. total is -1 when
// the size is unknown.
type Progress func(downloaded, total int64)

// Copy copies from src to dst while reporting progress. A nil onProgress
// falls back to io.Copy.
func Copy(dst io.Writer, src io.Reader, total int64, onProgress Progress) (int64, error) {
	if onProgress == nil {
		return io.Copy(dst, src)
	}

	buf := make([]byte, 32*1024)
	var written, lastReport int64

	for {
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if ew == nil {
					ew = fmt.Errorf("invalid write result")
				}
			}
			written += int64(nw)

			if written-lastReport > ReportEvery {
				onProgress(written, total)
				lastReport = written
			}

			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			break
		}
	}

	onProgress(written, total)
	return written, nil
}
