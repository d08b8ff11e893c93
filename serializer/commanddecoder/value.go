package commanddecoder

import (
	"fmt"

	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/multitree"
	"azure-iot-serializer/serializer/schema"
)

// owned holds decoded values until they are released or handed off.
type owned struct {
	codec ValueCodec
	vals  []agenttypes.Value
}

func newOwned(codec ValueCodec, n int) *owned {
	return &owned{codec: codec, vals: make([]agenttypes.Value, 0, n)}
}

func (o *owned) add(v agenttypes.Value) { o.vals = append(o.vals, v) }

func (o *owned) release() {
	for i := range o.vals {
		o.codec.Release(&o.vals[i])
	}
	o.vals = nil
}

// detach gives up ownership without releasing anything.
func (o *owned) detach() { o.vals = nil }

// decodeValue builds a value of typeName from node. Primitive types read the
// node's leaf; anything else is looked up as a struct type and decoded member
// by member from the node's children.
func (d *Decoder) decodeValue(s *schema.Schema, node *multitree.Tree, typeName string, depth int) (agenttypes.Value, error) {
	if depth > d.maxDepth {
		return agenttypes.Value{}, fmt.Errorf("%w: type %s", ErrTooDeep, typeName)
	}
	if kind := d.codec.PrimitiveKind(typeName); kind != agenttypes.KindNone {
		raw, err := node.Value()
		if err != nil {
			return agenttypes.Value{}, err
		}
		v, err := d.codec.FromString(raw, kind)
		if err != nil {
			return agenttypes.Value{}, fmt.Errorf("parsing %s: %w", node.Name(), err)
		}
		return v, nil
	}

	st, err := s.StructType(typeName)
	if err != nil {
		return agenttypes.Value{}, fmt.Errorf("getting struct information: %w", err)
	}
	n := st.MemberCount()
	if n == 0 {
		return agenttypes.Value{}, fmt.Errorf("%w: %s", ErrEmptyStruct, typeName)
	}

	names := make([]string, 0, n)
	members := newOwned(d.codec, n)
	defer members.release()

	for j := 0; j < n; j++ {
		m, err := st.Member(j)
		if err != nil {
			return agenttypes.Value{}, err
		}
		child, err := node.ChildByName(m.Name)
		if err != nil {
			return agenttypes.Value{}, fmt.Errorf("getting member %s of %s: %w", m.Name, typeName, err)
		}
		v, err := d.decodeValue(s, child, m.Type, depth+1)
		if err != nil {
			return agenttypes.Value{}, err
		}
		names = append(names, m.Name)
		members.add(v)
	}

	v, err := d.codec.FromMembers(typeName, names, members.vals)
	if err != nil {
		return agenttypes.Value{}, fmt.Errorf("creating %s from members: %w", typeName, err)
	}
	members.detach()
	return v, nil
}
