// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"encoding/binary"
	"encoding/json"
)

func unmarshalJSONInto(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}

func heightFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
