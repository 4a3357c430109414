/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export lays rendered frames out as a PDF storyboard.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"

	applog "vnengine/internal/log"
)

// StoryboardOptions controls PDF storyboard export.
// Units are points; frames are placed at 1px = 1pt.
type StoryboardOptions struct {
	Title    string
	Captions bool    // print the frame file name under each frame
	Margin   float64 // around the frame, default 18
}

// Storyboard writes one page per frame to outPath.
func Storyboard(frames []string, outPath string, opt StoryboardOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "storyboard").With(slog.String("out", outPath))
	if len(frames) == 0 {
		return errors.New("no frames to export")
	}
	margin := opt.Margin
	if margin <= 0 {
		margin = 18
	}
	caption := 0.0
	if opt.Captions {
		caption = 18
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: gofpdf.SizeType{Wd: 612, Ht: 792}})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("vnengine", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 10)

	imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
	for _, f := range frames {
		info := pdf.RegisterImageOptions(f, imgOpt)
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("frame %s: %w", f, err)
		}
		w, h := info.Width(), info.Height()
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w + 2*margin, Ht: h + 2*margin + caption})
		pdf.ImageOptions(f, margin, margin, w, h, false, imgOpt, 0, "")
		if opt.Captions {
			pdf.Text(margin, margin+h+caption*0.8, filepath.Base(f))
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	l.Info("storyboard exported", slog.Int("frames", len(frames)))
	return nil
}

// FramesIn lists the PNG files in dir in playback order: names are compared
// with their trailing numbers taken as numbers, so frame_10 follows frame_9.
func FramesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.SliceStable(out, func(i, j int) bool { return frameLess(filepath.Base(out[i]), filepath.Base(out[j])) })
	return out, nil
}

func frameLess(a, b string) bool {
	pa, na := splitNumber(a)
	pb, nb := splitNumber(b)
	if pa != pb {
		return pa < pb
	}
	return na < nb
}

// splitNumber splits "intro_12.png" into "intro_" and 12.
func splitNumber(name string) (string, int) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := len(stem)
	for i > 0 && unicode.IsDigit(rune(stem[i-1])) {
		i--
	}
	n, err := strconv.Atoi(stem[i:])
	if err != nil {
		return stem, -1
	}
	return stem[:i], n
}
