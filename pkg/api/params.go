package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/xinguang/stock-console/pkg/trading"
)

// fetchParams reads a parameter endpoint. These return items as an object
// keyed by parameter name; it is flattened into a list sorted by name.
func fetchParams(ctx context.Context, c *Client, path string, query Params) ListResult[trading.Param] {
	body, err := c.send(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return Failure[trading.Param]{Err: err}
	}
	return classifyParams(body)
}

func classifyParams(body []byte) ListResult[trading.Param] {
	env, err := decodeEnvelope(body)
	if err != nil || !env.Code.Success() || !isObject(env.Data) {
		return classifyList[trading.Param](body)
	}

	var data listData
	if err := json.Unmarshal(env.Data, &data); err != nil || !isObject(data.Items) {
		return classifyList[trading.Param](body)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data.Items, &fields); err != nil {
		return Failure[trading.Param]{Err: fmt.Errorf("%w: %v", ErrUnexpectedShape, err)}
	}

	params := make([]trading.Param, 0, len(fields))
	for name, value := range fields {
		params = append(params, trading.Param{Name: name, Value: value})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })

	return Success[trading.Param]{Items: params, Total: len(params)}
}
