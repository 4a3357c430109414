/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"vnengine/internal/engine"
	"vnengine/internal/version"
)

//go:embed save.schema.json
var saveSchema []byte

const (
	exportFormat  = "vne-save"
	exportVersion = 1
)

// exported is the on-disk shape of an exported save.
type exported struct {
	Format  string       `json:"format"`
	Version int          `json:"version"`
	Slot    string       `json:"slot"`
	SavedAt string       `json:"saved_at,omitempty"`
	App     string       `json:"app,omitempty"`
	State   engine.State `json:"state"`
}

// Export writes sv as an indented JSON document.
func Export(w io.Writer, sv Save) error {
	doc := exported{
		Format:  exportFormat,
		Version: exportVersion,
		Slot:    sv.Slot,
		App:     version.String(),
		State:   sv.State,
	}
	if !sv.UpdatedAt.IsZero() {
		doc.SavedAt = sv.UpdatedAt.UTC().Format(time.RFC3339)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Import reads and validates an exported save. The returned Save has no ID;
// storing it is up to the caller.
func Import(r io.Reader) (Save, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Save{}, fmt.Errorf("read save: %w", err)
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(saveSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Save{}, fmt.Errorf("validate save: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Save{}, fmt.Errorf("invalid save: %s", strings.Join(msgs, "; "))
	}
	var doc exported
	if err := json.Unmarshal(data, &doc); err != nil {
		return Save{}, fmt.Errorf("decode save: %w", err)
	}
	sv := Save{Slot: doc.Slot, State: doc.State}
	if doc.SavedAt != "" {
		sv.UpdatedAt, _ = time.Parse(time.RFC3339, doc.SavedAt)
	}
	return sv, nil
}
