// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

package datum

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// MessageName is the fully qualified protobuf name of the record.
const MessageName = "caffe.Datum"

// Field numbers of the Datum message.
const (
	fieldChannels  = 1
	fieldHeight    = 2
	fieldWidth     = 3
	fieldData      = 4
	fieldLabel     = 5
	fieldFloatData = 6
	fieldEncoded   = 7
)

func field(name string, number int32, label descriptorpb.FieldDescriptorProto_Label,
	fieldType descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  label.Enum(),
		Type:   fieldType.Enum(),
	}
}

// datumFileProto is the schema of caffe.proto restricted to the Datum message (proto2).
var datumFileProto = func() *descriptorpb.FileDescriptorProto {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	encoded := field("encoded", fieldEncoded, optional, descriptorpb.FieldDescriptorProto_TYPE_BOOL)
	encoded.DefaultValue = proto.String("false")
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("caffe/datum.proto"),
		Package: proto.String("caffe"),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Datum"),
			Field: []*descriptorpb.FieldDescriptorProto{
				field("channels", fieldChannels, optional, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				field("height", fieldHeight, optional, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				field("width", fieldWidth, optional, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				field("data", fieldData, optional, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				field("label", fieldLabel, optional, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				field("float_data", fieldFloatData, descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
					descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				encoded,
			},
		}},
	}
}()

// Descriptor is the protobuf descriptor of the Datum message.
var Descriptor protoreflect.MessageDescriptor

var (
	fdChannels, fdHeight, fdWidth, fdData, fdLabel, fdFloatData, fdEncoded protoreflect.FieldDescriptor
)

func init() {
	fd, err := protodesc.NewFile(datumFileProto, nil)
	if err != nil {
		panic(errors.Wrap(err, "failed to build the caffe.Datum descriptor"))
	}
	Descriptor = fd.Messages().ByName("Datum")
	fields := Descriptor.Fields()
	fdChannels = fields.ByNumber(fieldChannels)
	fdHeight = fields.ByNumber(fieldHeight)
	fdWidth = fields.ByNumber(fieldWidth)
	fdData = fields.ByNumber(fieldData)
	fdLabel = fields.ByNumber(fieldLabel)
	fdFloatData = fields.ByNumber(fieldFloatData)
	fdEncoded = fields.ByNumber(fieldEncoded)
}

// ToMessage converts the Datum to a dynamic protobuf message.
//
// The shape fields are only set when non-zero: encoded datums don't carry a shape.
func (d *Datum) ToMessage() *dynamicpb.Message {
	m := dynamicpb.NewMessage(Descriptor)
	if d.Channels != 0 {
		m.Set(fdChannels, protoreflect.ValueOfInt32(d.Channels))
	}
	if d.Height != 0 {
		m.Set(fdHeight, protoreflect.ValueOfInt32(d.Height))
	}
	if d.Width != 0 {
		m.Set(fdWidth, protoreflect.ValueOfInt32(d.Width))
	}
	m.Set(fdData, protoreflect.ValueOfBytes(d.Data))
	m.Set(fdLabel, protoreflect.ValueOfInt32(d.Label))
	if len(d.FloatData) > 0 {
		list := m.Mutable(fdFloatData).List()
		for _, v := range d.FloatData {
			list.Append(protoreflect.ValueOfFloat32(v))
		}
	}
	m.Set(fdEncoded, protoreflect.ValueOfBool(d.Encoded))
	return m
}

// FromMessage overwrites all fields of the Datum with the contents of m, which must be a message
// of type caffe.Datum. Missing fields are set to their zero value.
func (d *Datum) FromMessage(m protoreflect.Message) error {
	if m.Descriptor().FullName() != MessageName {
		return errors.Errorf("cannot convert message %q to a Datum, want %q", m.Descriptor().FullName(), MessageName)
	}
	// Fields are fetched by number, so messages built from a different copy of the schema work as well.
	fields := m.Descriptor().Fields()
	get := func(number protoreflect.FieldNumber) protoreflect.Value {
		return m.Get(fields.ByNumber(number))
	}
	d.Channels = int32(get(fieldChannels).Int())
	d.Height = int32(get(fieldHeight).Int())
	d.Width = int32(get(fieldWidth).Int())
	d.Data = get(fieldData).Bytes()
	d.Label = int32(get(fieldLabel).Int())
	d.FloatData = nil
	if list := get(fieldFloatData).List(); list.Len() > 0 {
		d.FloatData = make([]float32, list.Len())
		for ii := range d.FloatData {
			d.FloatData[ii] = float32(list.Get(ii).Float())
		}
	}
	d.Encoded = get(fieldEncoded).Bool()
	return nil
}

// Marshal serializes the Datum in the protobuf binary wire format.
func Marshal(d *Datum) ([]byte, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(d.ToMessage())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize %s", d)
	}
	return b, nil
}

// Unmarshal parses the protobuf binary wire format into d, overwriting all its fields.
// On error d is left unchanged.
func Unmarshal(b []byte, d *Datum) error {
	m := dynamicpb.NewMessage(Descriptor)
	if err := proto.Unmarshal(b, m); err != nil {
		return errors.Wrapf(err, "failed to parse %d bytes as %s", len(b), MessageName)
	}
	return d.FromMessage(m)
}

// MarshalText serializes the Datum in the protobuf text format, one field per line.
func MarshalText(d *Datum) ([]byte, error) {
	b, err := prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(d.ToMessage())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to print %s as text", d)
	}
	return b, nil
}

// UnmarshalText parses the protobuf text format into d, overwriting all its fields.
// On error d is left unchanged.
func UnmarshalText(b []byte, d *Datum) error {
	m := dynamicpb.NewMessage(Descriptor)
	if err := prototext.Unmarshal(b, m); err != nil {
		return errors.Wrapf(err, "failed to parse text as %s", MessageName)
	}
	return d.FromMessage(m)
}
