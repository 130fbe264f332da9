package formatting

import (
	"encoding/json"
	"fmt"
)

// PrettyJSON renders v as indented JSON, or with %v if it cannot be marshalled.
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
