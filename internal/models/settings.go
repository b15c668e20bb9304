package models

import "encoding/json"

// Setting keys persisted in the settings store.
const (
	SettingTypes         = "types"
	SettingExcludedList  = "excludedList"
	SettingPDFReaderPath = "pdfReaderPath"
)

// ExcludedListItem is a user exclusion rule. Exactly one of FileName and
// Path is set.
type ExcludedListItem struct {
	FileName  string `json:"file_name,omitempty"`
	Path      string `json:"path,omitempty"`
	DateAdded string `json:"dateAdded"`
}

// IsPath reports whether the rule excludes a path prefix.
func (e ExcludedListItem) IsPath() bool {
	return e.Path != ""
}

// Settings is the user configuration singleton.
type Settings struct {
	Types         []string           `json:"types"`
	ExcludedList  []ExcludedListItem `json:"excludedList"`
	PDFReaderPath string             `json:"pdfReaderPath"`

	// Extra holds settings keys folio does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// DefaultSettings returns the hardcoded defaults applied before persisted
// values on load.
func DefaultSettings() Settings {
	return Settings{
		Types:         []string{"pdf", "djvu"},
		ExcludedList:  []ExcludedListItem{},
		PDFReaderPath: "",
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.Types = append([]string(nil), s.Types...)
	out.ExcludedList = append([]ExcludedListItem(nil), s.ExcludedList...)
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Entries returns every setting as key/value pairs, modelled keys first.
func (s Settings) Entries() map[string]any {
	out := map[string]any{
		SettingTypes:         s.Types,
		SettingExcludedList:  s.ExcludedList,
		SettingPDFReaderPath: s.PDFReaderPath,
	}
	for k, v := range s.Extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// Apply decodes raw into the field named key. Unknown keys go to Extra.
func (s *Settings) Apply(key string, raw json.RawMessage) error {
	switch key {
	case SettingTypes:
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		s.Types = v
	case SettingExcludedList:
		var v []ExcludedListItem
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		s.ExcludedList = v
	case SettingPDFReaderPath:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		s.PDFReaderPath = v
	default:
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[key] = append(json.RawMessage(nil), raw...)
	}
	return nil
}

// MarshalJSON flattens Extra into the settings object.
func (s Settings) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, 3+len(s.Extra))
	for k, v := range s.Entries() {
		obj[k] = v
	}
	if s.Types == nil {
		obj[SettingTypes] = []string{}
	}
	if s.ExcludedList == nil {
		obj[SettingExcludedList] = []ExcludedListItem{}
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes a flat settings object.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for k, v := range obj {
		if err := s.Apply(k, v); err != nil {
			return err
		}
	}
	return nil
}
