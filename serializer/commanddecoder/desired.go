package commanddecoder

import (
	"fmt"
	"unsafe"

	"azure-iot-serializer/serializer/multitree"
	"azure-iot-serializer/serializer/schema"
)

// IngestDesiredProperties writes every desired property named in doc into the
// device memory starting at start, descending into nested models, and fires
// the registered change callbacks. Invalid input or an unparsable document is
// an Error; any failure while walking the document is reported as Failed.
func (d *Decoder) IngestDesiredProperties(start unsafe.Pointer, doc string) Result {
	if start == nil || doc == "" {
		d.logInvalid()
		return Error
	}
	if err := d.usable(); err != nil {
		return Error
	}
	tree, err := multitree.FromJSON(doc)
	if err != nil {
		d.log.Error().Err(err).Msg("decoding desired properties JSON failed")
		return Error
	}
	if err := d.ingestModel(start, d.model, tree, 0, 0); err != nil {
		d.log.Error().Err(err).Msg("ingesting desired properties failed")
		return Failed
	}
	return Success
}

func (d *Decoder) logInvalid() {
	if d != nil {
		d.log.Error().Msg("invalid argument: nil start address or empty desired properties")
	}
}

func (d *Decoder) ingestModel(start unsafe.Pointer, model *schema.Model, node *multitree.Tree, base uintptr, depth int) error {
	if depth > d.maxDepth {
		return fmt.Errorf("%w: model %s", ErrTooDeep, model.Name())
	}
	s := model.Schema()
	if s == nil {
		return ErrNoSchema
	}
	for i := 0; i < node.ChildCount(); i++ {
		child, err := node.Child(i)
		if err != nil {
			return err
		}
		name := child.Name()
		el := model.Element(name)
		switch el.Kind {
		case schema.ElementNotFound:
			if d.strictDesired {
				return fmt.Errorf("%w: %q in model %s", ErrUnknownElement, name, model.Name())
			}
			d.log.Debug().Str("name", name).Str("model", model.Name()).Msg("skipping unknown desired property")
		case schema.ElementDesiredProperty:
			if err := d.ingestProperty(start, s, el.DesiredProperty, child, base); err != nil {
				return err
			}
		case schema.ElementModel:
			nested := base + el.Offset
			if err := d.ingestModel(start, el.Model, child, nested, depth+1); err != nil {
				return err
			}
			if el.OnChange != nil {
				el.OnChange(unsafe.Add(start, nested))
			}
		default:
			return fmt.Errorf("%w: %q is a %s of model %s", ErrNotDesired, name, el.Kind, model.Name())
		}
	}
	return nil
}

func (d *Decoder) ingestProperty(start unsafe.Pointer, s *schema.Schema, dp *schema.DesiredProperty, node *multitree.Tree, base uintptr) error {
	if dp.Write == nil {
		return fmt.Errorf("%w: %s", ErrNoWriter, dp.Name)
	}
	v, err := d.decodeValue(s, node, dp.Type, 0)
	if err != nil {
		return fmt.Errorf("desired property %s: %w", dp.Name, err)
	}
	defer d.codec.Release(&v)

	if err := dp.Write(v, unsafe.Add(start, base+dp.Offset)); err != nil {
		return fmt.Errorf("writing desired property %s: %w", dp.Name, err)
	}
	if dp.OnChange != nil {
		dp.OnChange(unsafe.Add(start, base), v)
	}
	return nil
}
