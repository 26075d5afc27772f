package query

import (
	"encoding/json"
	"fmt"
)

// serializeArg returns the canonical form of a call argument. Map keys are
// sorted by encoding/json, so equal arguments always produce equal keys.
func serializeArg(arg any) string {
	encoded, err := json.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%#v", arg)
	}

	return string(encoded)
}

func cacheKey(endpoint string, arg any) string {
	return endpoint + "(" + serializeArg(arg) + ")"
}
