package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// SelectRequest selects a block from a stored device, or from Text when
// Device is empty. A single-element Path is split on Separator.
type SelectRequest struct {
	Device    string
	Text      string
	Path      []string
	Separator string
	Indent    int
}

// Parse parses text on the server.
func (c *Client) Parse(ctx context.Context, text string, indent int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"text": text, "indent": indent})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodParse, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Select returns the child keys of the selected block.
func (c *Client) Select(ctx context.Context, req SelectRequest, opts ...grpc.CallOption) ([]string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"device":    req.Device,
		"text":      req.Text,
		"path":      anyStrings(req.Path),
		"separator": req.Separator,
		"indent":    req.Indent,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodSelect, in, out, opts...); err != nil {
		return nil, err
	}
	return listStrings(out), nil
}

// ApplyFilter runs a named filter on the server.
func (c *Client) ApplyFilter(ctx context.Context, name, text, arg string, indent int, opts ...grpc.CallOption) ([]string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"name":   name,
		"text":   text,
		"arg":    arg,
		"indent": indent,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodApplyFilter, in, out, opts...); err != nil {
		return nil, err
	}
	return listStrings(out), nil
}

// ListDevices returns one map per stored device.
func (c *Client) ListDevices(ctx context.Context, opts ...grpc.CallOption) ([]map[string]any, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodListDevices, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	devs := make([]map[string]any, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		devs = append(devs, v.GetStructValue().AsMap())
	}
	return devs, nil
}

// PutDevice stores text as device on the server.
func (c *Client) PutDevice(ctx context.Context, device, text string, indent int, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(map[string]any{"device": device, "text": text, "indent": indent})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodPutDevice, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func listStrings(lv *structpb.ListValue) []string {
	out := make([]string, 0, len(lv.GetValues()))
	for _, v := range lv.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}
