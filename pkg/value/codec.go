// Copyright 2026, the declstack authors. All rights reserved.

package value

import (
	"sort"

	"google.golang.org/protobuf/types/known/structpb"
)

// Reserved sentinel signatures used to encode the orthogonal secret/unknown/
// resource/output/asset/archive kinds inside a plain structpb.Struct (§4.7).
// These mirror the sig fields the real orchestrator wire protocol reserves;
// any plain object happening to carry one of these keys is, by convention,
// never a legitimate user property.
const (
	sigField      = "4dabf18193072939515e22adb298388d"
	secretSig     = "1b47061264138c4ac30d75fd1eb44270"
	resourceSig   = "5cf8f73096256a8f31e491e813e4eb8e"
	outputSig     = "d0e6a833031e9bbcd3f4e8bde6ca49a4"
	assetSig      = "c44067f5952c0a294b673a41bacd8c17"
	archiveSig    = "0def7320c3a5731c473e5ecbe6d01bc7"
	unknownSentinel = "04da6b54-80e4-46f7-96ec-b56ff0331ba9"
)

// Encode converts v into the generic protobuf Struct-shaped wire envelope.
func Encode(v Value) *structpb.Value {
	switch v.kind {
	case KindNull:
		return structpb.NewNullValue()
	case KindBool:
		return structpb.NewBoolValue(v.boolean)
	case KindNumber:
		return structpb.NewNumberValue(v.number)
	case KindString:
		return structpb.NewStringValue(v.str)
	case KindUnknown:
		return structpb.NewStringValue(unknownSentinel)
	case KindList:
		items := make([]*structpb.Value, len(v.list))
		for i, e := range v.list {
			items[i] = Encode(e)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items})
	case KindObject:
		fields := make(map[string]*structpb.Value, len(v.object))
		for k, e := range v.object {
			fields[k] = Encode(e)
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	case KindSecret:
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			sigField: structpb.NewStringValue(secretSig),
			"value":  Encode(*v.inner),
		}})
	case KindResourceRef:
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			sigField: structpb.NewStringValue(resourceSig),
			"urn":    structpb.NewStringValue(v.ref.URN),
			"id":     structpb.NewStringValue(v.ref.ID),
		}})
	case KindAsset:
		fields := map[string]*structpb.Value{sigField: structpb.NewStringValue(assetSig)}
		switch {
		case v.asset.Path != "":
			fields["path"] = structpb.NewStringValue(v.asset.Path)
		case v.asset.URI != "":
			fields["uri"] = structpb.NewStringValue(v.asset.URI)
		default:
			fields["text"] = structpb.NewStringValue(v.asset.Text)
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	case KindArchive:
		fields := map[string]*structpb.Value{sigField: structpb.NewStringValue(archiveSig)}
		switch {
		case v.archive.Path != "":
			fields["path"] = structpb.NewStringValue(v.archive.Path)
		case v.archive.URI != "":
			fields["uri"] = structpb.NewStringValue(v.archive.URI)
		default:
			entries := make(map[string]*structpb.Value, len(v.archive.Assets))
			for k, e := range v.archive.Assets {
				entries[k] = Encode(e)
			}
			fields["assets"] = structpb.NewStructValue(&structpb.Struct{Fields: entries})
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	default:
		return structpb.NewNullValue()
	}
}

// EncodeOutput wraps v in the "output" sentinel envelope used for resource
// output properties, where a secret inner value and an absent (unknown)
// inner value are both legal (§4.7).
func EncodeOutput(v Value) *structpb.Value {
	fields := map[string]*structpb.Value{sigField: structpb.NewStringValue(outputSig)}
	if !v.IsUnknown() {
		fields["value"] = Encode(v)
		fields["secret"] = structpb.NewBoolValue(v.IsSecret())
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

// Decode reverses Encode, recognizing every reserved sentinel shape. Decode
// is the left inverse of Encode: Decode(Encode(v)) reproduces v's kind and
// contents exactly, including nested secrets-of-lists-of-unknowns.
func Decode(pv *structpb.Value) Value {
	switch k := pv.GetKind().(type) {
	case *structpb.Value_NullValue:
		return Null()
	case *structpb.Value_BoolValue:
		return Bool(k.BoolValue)
	case *structpb.Value_NumberValue:
		return Number(k.NumberValue)
	case *structpb.Value_StringValue:
		if k.StringValue == unknownSentinel {
			return Unknown()
		}
		return String(k.StringValue)
	case *structpb.Value_ListValue:
		items := make([]Value, len(k.ListValue.Values))
		for i, e := range k.ListValue.Values {
			items[i] = Decode(e)
		}
		return List(items...)
	case *structpb.Value_StructValue:
		return decodeStruct(k.StructValue)
	default:
		return Null()
	}
}

func decodeStruct(s *structpb.Struct) Value {
	if sig, ok := s.Fields[sigField]; ok {
		switch sig.GetStringValue() {
		case secretSig:
			return Secret(Decode(s.Fields["value"]))
		case resourceSig:
			return Resource(ResourceRef{
				URN: s.Fields["urn"].GetStringValue(),
				ID:  s.Fields["id"].GetStringValue(),
			})
		case outputSig:
			if v, ok := s.Fields["value"]; ok {
				inner := Decode(v)
				if s.Fields["secret"].GetBoolValue() {
					inner = Secret(inner)
				}
				return inner
			}
			return Unknown()
		case assetSig:
			a := Asset{}
			switch {
			case s.Fields["path"] != nil:
				a.Path = s.Fields["path"].GetStringValue()
			case s.Fields["uri"] != nil:
				a.URI = s.Fields["uri"].GetStringValue()
			default:
				a.Text = s.Fields["text"].GetStringValue()
			}
			return AssetValue(a)
		case archiveSig:
			ar := Archive{}
			switch {
			case s.Fields["path"] != nil:
				ar.Path = s.Fields["path"].GetStringValue()
			case s.Fields["uri"] != nil:
				ar.URI = s.Fields["uri"].GetStringValue()
			default:
				assets := s.Fields["assets"].GetStructValue()
				ar.Assets = map[string]Value{}
				for k, v := range assets.GetFields() {
					ar.Assets[k] = Decode(v)
				}
			}
			return ArchiveValue(ar)
		}
	}

	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make(map[string]Value, len(s.Fields))
	for _, k := range keys {
		fields[k] = Decode(s.Fields[k])
	}
	return Object(keys, fields)
}
