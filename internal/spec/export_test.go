package spec

import "encoding/json"

// UnmarshalJSONForTest decodes a literal document into s.
func (s *ChartSpec) UnmarshalJSONForTest(doc string) error {
	return json.Unmarshal([]byte(doc), s)
}
