// Copyright 2026, the declstack authors. All rights reserved.

package eval

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/declstack/declstack/pkg/value"
)

// GRPCCallback is the transport-backed Callback implementation: every
// operation is a single unary RPC against the orchestrator, with request and
// response both carried as a generic structpb.Struct envelope rather than a
// hand-compiled .proto service (§4.6.1's "transport-backed implementation
// outside this spec" is deliberately left generic; this is one concrete
// shape of it, reusing the same wire envelope the value codec already
// speaks).
type GRPCCallback struct {
	conn *grpc.ClientConn
}

// NewGRPCCallback wraps an already-dialed connection to the orchestrator.
func NewGRPCCallback(conn *grpc.ClientConn) *GRPCCallback {
	return &GRPCCallback{conn: conn}
}

const (
	methodRegisterResource = "/declstack.engine.ResourceMonitor/RegisterResource"
	methodReadResource     = "/declstack.engine.ResourceMonitor/ReadResource"
	methodInvoke           = "/declstack.engine.ResourceMonitor/Invoke"
	methodRegisterOutputs  = "/declstack.engine.ResourceMonitor/RegisterResourceOutputs"
	methodLog              = "/declstack.engine.ResourceMonitor/Log"
	methodRegisterPackage  = "/declstack.engine.ResourceMonitor/RegisterPackage"
)

func structOf(fields map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: fields}
}

func encodeValueMap(m map[string]value.Value) *structpb.Value {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = value.Encode(v)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func decodeValueMap(v *structpb.Value) map[string]value.Value {
	s := v.GetStructValue()
	if s == nil {
		return map[string]value.Value{}
	}
	out := make(map[string]value.Value, len(s.Fields))
	for k, f := range s.Fields {
		out[k] = value.Decode(f)
	}
	return out
}

func (g *GRPCCallback) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return resp, nil
}

func (g *GRPCCallback) RegisterResource(ctx context.Context, typeToken, logicalName string, custom, remote bool,
	inputs map[string]value.Value, opts ResolvedResourceOptions) (RegisterResponse, error) {
	req := structOf(map[string]*structpb.Value{
		"type":    structpb.NewStringValue(typeToken),
		"name":    structpb.NewStringValue(logicalName),
		"custom":  structpb.NewBoolValue(custom),
		"remote":  structpb.NewBoolValue(remote),
		"inputs":  encodeValueMap(inputs),
		"options": encodeResourceOptions(opts),
	})
	resp, err := g.invoke(ctx, methodRegisterResource, req)
	if err != nil {
		return RegisterResponse{}, err
	}
	return decodeRegisterResponse(resp), nil
}

func (g *GRPCCallback) ReadResource(ctx context.Context, typeToken, logicalName, id, parentURN string,
	inputs map[string]value.Value, providerRef, version string) (RegisterResponse, error) {
	req := structOf(map[string]*structpb.Value{
		"type":     structpb.NewStringValue(typeToken),
		"name":     structpb.NewStringValue(logicalName),
		"id":       structpb.NewStringValue(id),
		"parent":   structpb.NewStringValue(parentURN),
		"inputs":   encodeValueMap(inputs),
		"provider": structpb.NewStringValue(providerRef),
		"version":  structpb.NewStringValue(version),
	})
	resp, err := g.invoke(ctx, methodReadResource, req)
	if err != nil {
		return RegisterResponse{}, err
	}
	return decodeRegisterResponse(resp), nil
}

func (g *GRPCCallback) Invoke(ctx context.Context, token string, args map[string]value.Value,
	providerRef, version, parentURN string, dependsOn []string) (InvokeResponse, error) {
	deps := make([]*structpb.Value, len(dependsOn))
	for i, d := range dependsOn {
		deps[i] = structpb.NewStringValue(d)
	}
	req := structOf(map[string]*structpb.Value{
		"token":     structpb.NewStringValue(token),
		"args":      encodeValueMap(args),
		"provider":  structpb.NewStringValue(providerRef),
		"version":   structpb.NewStringValue(version),
		"parent":    structpb.NewStringValue(parentURN),
		"dependsOn": structpb.NewListValue(&structpb.ListValue{Values: deps}),
	})
	resp, err := g.invoke(ctx, methodInvoke, req)
	if err != nil {
		return InvokeResponse{}, err
	}
	out := InvokeResponse{ReturnValues: decodeValueMap(resp.Fields["returns"])}
	if failures := resp.Fields["failures"].GetListValue(); failures != nil {
		for _, f := range failures.Values {
			out.Failures = append(out.Failures, f.GetStringValue())
		}
	}
	return out, nil
}

func (g *GRPCCallback) RegisterOutputs(ctx context.Context, urn string, outputs map[string]value.Value) error {
	req := structOf(map[string]*structpb.Value{
		"urn":     structpb.NewStringValue(urn),
		"outputs": encodeValueMap(outputs),
	})
	_, err := g.invoke(ctx, methodRegisterOutputs, req)
	return err
}

func (g *GRPCCallback) Log(severity LogSeverity, message string) {
	req := structOf(map[string]*structpb.Value{
		"severity": structpb.NewNumberValue(float64(severity)),
		"message":  structpb.NewStringValue(message),
	})
	_, _ = g.invoke(context.Background(), methodLog, req)
}

func (g *GRPCCallback) RegisterPackage(ctx context.Context, name, version, downloadURL string, parameterization map[string]string) (PackageRef, error) {
	params := make(map[string]*structpb.Value, len(parameterization))
	for k, v := range parameterization {
		params[k] = structpb.NewStringValue(v)
	}
	req := structOf(map[string]*structpb.Value{
		"name":             structpb.NewStringValue(name),
		"version":          structpb.NewStringValue(version),
		"downloadUrl":      structpb.NewStringValue(downloadURL),
		"parameterization": structpb.NewStructValue(&structpb.Struct{Fields: params}),
	})
	resp, err := g.invoke(ctx, methodRegisterPackage, req)
	if err != nil {
		return "", err
	}
	return PackageRef(resp.Fields["ref"].GetStringValue()), nil
}

func decodeRegisterResponse(resp *structpb.Struct) RegisterResponse {
	out := RegisterResponse{
		URN:     resp.Fields["urn"].GetStringValue(),
		ID:      resp.Fields["id"].GetStringValue(),
		Outputs: decodeValueMap(resp.Fields["outputs"]),
	}
	if stables := resp.Fields["stables"].GetListValue(); stables != nil {
		for _, s := range stables.Values {
			out.Stables = append(out.Stables, s.GetStringValue())
		}
	}
	return out
}

func encodeResourceOptions(o ResolvedResourceOptions) *structpb.Value {
	strList := func(items []string) *structpb.Value {
		vs := make([]*structpb.Value, len(items))
		for i, s := range items {
			vs[i] = structpb.NewStringValue(s)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: vs})
	}
	providers := make(map[string]*structpb.Value, len(o.Providers))
	for k, v := range o.Providers {
		providers[k] = structpb.NewStringValue(v)
	}
	return structpb.NewStructValue(structOf(map[string]*structpb.Value{
		"aliases":                 strList(o.Aliases),
		"createTimeout":           structpb.NewStringValue(o.CreateTimeout),
		"updateTimeout":           structpb.NewStringValue(o.UpdateTimeout),
		"deleteTimeout":           structpb.NewStringValue(o.DeleteTimeout),
		"deleteBeforeReplace":     structpb.NewBoolValue(o.DeleteBeforeReplace),
		"dependsOn":               strList(o.DependsOn),
		"ignoreChanges":           strList(o.IgnoreChanges),
		"import":                  structpb.NewStringValue(o.Import),
		"parent":                  structpb.NewStringValue(o.Parent),
		"protect":                 structpb.NewBoolValue(o.Protect),
		"provider":                structpb.NewStringValue(o.Provider),
		"providers":               structpb.NewStructValue(&structpb.Struct{Fields: providers}),
		"version":                 structpb.NewStringValue(o.Version),
		"pluginDownloadUrl":       structpb.NewStringValue(o.PluginDownloadURL),
		"replaceOnChanges":        strList(o.ReplaceOnChanges),
		"retainOnDelete":          structpb.NewBoolValue(o.RetainOnDelete),
		"replaceWith":             structpb.NewStringValue(o.ReplaceWith),
		"deletedWith":             structpb.NewStringValue(o.DeletedWith),
		"additionalSecretOutputs": strList(o.AdditionalSecretOutputs),
		"hideDiffs":               strList(o.HideDiffs),
	}))
}
