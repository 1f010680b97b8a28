// Command ggl-cli is the operator-facing CLI for talking to any core
// bus interface directly: call, notify, and subscribe subcommands.
// Detailed argument-parsing semantics are out of scope per spec.md §1;
// this exists only as the ambient surface every daemon needs, built the
// way moby-moby builds its docker/dockerd entry points (a cobra command
// tree with pflag-backed persistent flags).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
)

var (
	socketDir string
	iface     string
	method    string
	params    string
)

func main() {
	root := &cobra.Command{
		Use:   "ggl-cli",
		Short: "Talk to a core bus interface directly",
	}
	root.PersistentFlags().StringVar(&socketDir, "socket-dir", envOr("GGL_SOCKET_DIR", "/run/greengrass/ipc"), "directory core bus sockets are created under")
	root.PersistentFlags().StringVar(&iface, "interface", "", "core bus interface name")
	root.PersistentFlags().StringVar(&method, "method", "", "method name")
	root.PersistentFlags().StringVar(&params, "params", "{}", "JSON object converted to the call's params")
	_ = root.MarkPersistentFlagRequired("interface")
	_ = root.MarkPersistentFlagRequired("method")

	root.AddCommand(callCmd(), notifyCmd(), subscribeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call",
		Short: "Send a unary call and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams()
			if err != nil {
				return err
			}
			result, err := corebus.Call(socketDir, iface, method, p)
			if err != nil {
				return err
			}
			return printValue(result)
		},
	}
}

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Send a fire-and-forget notify",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams()
			if err != nil {
				return err
			}
			return corebus.Notify(socketDir, iface, method, p)
		},
	}
}

func subscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe",
		Short: "Open a subscription and print every message until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams()
			if err != nil {
				return err
			}
			sub, err := corebus.Subscribe(socketDir, iface, method, p, func(v ggobject.Value) error {
				return printValue(v)
			})
			if err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			<-sig
			return sub.Close()
		},
	}
}

func parseParams() (ggobject.Value, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(params), &raw); err != nil {
		return ggobject.Value{}, fmt.Errorf("parsing --params: %w", err)
	}
	return jsonToValue(raw)
}

func jsonToValue(v any) (ggobject.Value, error) {
	switch t := v.(type) {
	case nil:
		return ggobject.Null(), nil
	case bool:
		return ggobject.Bool(t), nil
	case float64:
		return ggobject.Float64(t), nil
	case string:
		return ggobject.BufString(t), nil
	case []any:
		items := make([]ggobject.Value, 0, len(t))
		for _, e := range t {
			ev, err := jsonToValue(e)
			if err != nil {
				return ggobject.Value{}, err
			}
			items = append(items, ev)
		}
		return ggobject.List(items...), nil
	case map[string]any:
		pairs := make([]ggobject.KV, 0, len(t))
		for k, e := range t {
			ev, err := jsonToValue(e)
			if err != nil {
				return ggobject.Value{}, err
			}
			pairs = append(pairs, ggobject.Pair(k, ev))
		}
		return ggobject.Map(pairs...)
	default:
		return ggobject.Value{}, fmt.Errorf("unsupported JSON value of type %T", v)
	}
}

func printValue(v ggobject.Value) error {
	rendered, err := valueToJSON(v)
	if err != nil {
		return err
	}
	out, err := json.Marshal(rendered)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func valueToJSON(v ggobject.Value) (any, error) {
	switch v.Kind() {
	case ggobject.KindNull:
		return nil, nil
	case ggobject.KindBool:
		return v.AsBool(), nil
	case ggobject.KindInt64:
		return v.AsInt64(), nil
	case ggobject.KindFloat64:
		return v.AsFloat64(), nil
	case ggobject.KindBuf:
		return string(v.AsBuf()), nil
	case ggobject.KindList:
		items := v.AsList()
		out := make([]any, 0, len(items))
		for _, e := range items {
			rendered, err := valueToJSON(e)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered)
		}
		return out, nil
	case ggobject.KindMap:
		out := make(map[string]any, len(v.Keys()))
		for _, k := range v.Keys() {
			e, _ := v.Get(k)
			rendered, err := valueToJSON(e)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind())
	}
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
