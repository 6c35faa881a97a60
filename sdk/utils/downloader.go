// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

/* ------------ tiny UI helper for single-line progress ------------ */

type globalProgress struct {
	totalKnown bool
	totalBytes int64
	doneBytes  int64
	spinIdx    int
	lastTick   time.Time
}

var spinner = []rune{'|', '/', '-', '\\'}

func (gp *globalProgress) add(delta int64) {
	gp.doneBytes += delta
}

func human(n int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case n >= GB:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(GB))
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(MB))
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(KB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (gp *globalProgress) render(force bool) {
	// throttled to ~10 updates per second
	if !force && time.Since(gp.lastTick) < 100*time.Millisecond {
		return
	}
	gp.lastTick = time.Now()

	if gp.totalKnown && gp.totalBytes > 0 {
		pct := float64(gp.doneBytes) / float64(gp.totalBytes) * 100
		if gp.doneBytes > gp.totalBytes {
			gp.doneBytes = gp.totalBytes
			pct = 100
		}
		fmt.Fprintf(os.Stderr, "\rProgress: %6.2f%% (%s / %s)   ",
			pct, human(gp.doneBytes), human(gp.totalBytes))
	} else {
		ch := spinner[gp.spinIdx%len(spinner)]
		gp.spinIdx++
		fmt.Fprintf(os.Stderr, "\rProgress: [%c] %s downloaded   ", ch, human(gp.doneBytes))
	}
}

func (gp *globalProgress) done() {
	gp.render(true)
	fmt.Fprintln(os.Stderr)
}

/* ------------ local save targets ------------ */

// ChooseLocalTarget resolves the destination for one file:
// - empty dst           -> filename in the cwd
// - dst is a directory  -> dst/filename
// - dst is a file       -> dst
// - dst does not exist  -> create directory dst, use dst/filename
func ChooseLocalTarget(dst, filename string) (string, error) {
	if dst == "" {
		return filename, nil
	}
	info, statErr := os.Stat(dst)
	if statErr == nil {
		if info.IsDir() {
			return filepath.Join(dst, filename), nil
		}
		return dst, nil
	}
	if os.IsNotExist(statErr) {
		if mkErr := os.MkdirAll(dst, 0o755); mkErr != nil {
			return "", mkErr
		}
		return filepath.Join(dst, filename), nil
	}
	return "", statErr
}

// SaveBytes writes already-decoded content under destination/filename.
// This is the only place the SDK touches the local disk.
func SaveBytes(destination, filename string, content []byte) (string, error) {
	target, err := ChooseLocalTarget(destination, filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", err
	}
	return target, nil
}

// DownloadHTTPFile streams a URL to a local file with a one-line progress
// display. Used for redirect results the relay declined to ferry.
func DownloadHTTPFile(url string, destination string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) { _ = body.Close() }(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer out.Close()

	gp := &globalProgress{}
	if resp.ContentLength > 0 {
		gp.totalKnown = true
		gp.totalBytes = resp.ContentLength
	}

	buf := make([]byte, 1024*128) // 128KB
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			gp.add(int64(n))
			gp.render(false)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return readErr
		}
	}
	gp.done()
	return nil
}
