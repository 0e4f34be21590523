package jsonld

import (
	"encoding/json"
	"sort"

	"github.com/chronicle-ledger/chronicle-lib/errors"
)

// Node is one expanded linked-data node: an identified resource with a
// type array and a set of predicate-keyed values. Values are either a
// literal (string/number/bool/map, wrapped as {"@value": ...}), a
// reference to another node ({"@id": ...}), or an array of either.
type Node struct {
	ID         string                     `json:"@id"`
	Type       []string                   `json:"@type"`
	Properties map[string]json.RawMessage `json:"-"`
}

type rawNode struct {
	ID    string                     `json:"@id"`
	Type  []string                   `json:"@type"`
	Props map[string]json.RawMessage `json:"-"`
}

// MarshalJSON flattens Properties alongside @id/@type, matching the shape
// an expanded linked-data node is expected to have on the wire.
func (n Node) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	idBytes, _ := json.Marshal(n.ID)
	out["@id"] = idBytes
	typeBytes, _ := json.Marshal(n.Type)
	out["@type"] = typeBytes
	for k, v := range n.Properties {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits @id/@type out from the remaining predicate keys.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.KindMalformedDocument, err, "decode linked-data node")
	}
	if idRaw, ok := raw["@id"]; ok {
		if err := json.Unmarshal(idRaw, &n.ID); err != nil {
			return errors.Wrap(errors.KindMalformedDocument, err, "decode node @id")
		}
		delete(raw, "@id")
	} else {
		return errors.New(errors.KindMalformedDocument, "linked-data node missing @id")
	}
	if typeRaw, ok := raw["@type"]; ok {
		if err := json.Unmarshal(typeRaw, &n.Type); err != nil {
			return errors.Wrap(errors.KindMalformedDocument, err, "decode node @type")
		}
		delete(raw, "@type")
	} else {
		return errors.New(errors.KindMalformedDocument, "linked-data node missing @type")
	}
	for k := range raw {
		if !isKnownTerm(k) {
			return errors.Newf(errors.KindUnknownTerm, "%s", k)
		}
	}
	n.Properties = raw
	return nil
}

func literal(v any) json.RawMessage {
	b, _ := json.Marshal(map[string]any{"@value": v})
	return b
}

func reference(id string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{"@id": id})
	return b
}

func refArray(ids []string) json.RawMessage {
	sort.Strings(ids)
	arr := make([]map[string]any, len(ids))
	for i, id := range ids {
		arr[i] = map[string]any{"@id": id}
	}
	b, _ := json.Marshal(arr)
	return b
}

func decodeLiteral(raw json.RawMessage, out any) error {
	var wrapper struct {
		Value json.RawMessage `json:"@value"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return errors.Wrap(errors.KindMalformedDocument, err, "decode literal property")
	}
	if err := json.Unmarshal(wrapper.Value, out); err != nil {
		return errors.Wrap(errors.KindMalformedDocument, err, "decode literal value")
	}
	return nil
}

func decodeRef(raw json.RawMessage) (string, error) {
	var wrapper struct {
		ID string `json:"@id"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return "", errors.Wrap(errors.KindMalformedDocument, err, "decode reference property")
	}
	return wrapper.ID, nil
}

func decodeRefArray(raw json.RawMessage) ([]string, error) {
	var wrappers []struct {
		ID string `json:"@id"`
	}
	if err := json.Unmarshal(raw, &wrappers); err != nil {
		return nil, errors.Wrap(errors.KindMalformedDocument, err, "decode reference array property")
	}
	ids := make([]string, len(wrappers))
	for i, w := range wrappers {
		ids[i] = w.ID
	}
	return ids, nil
}
