package starbind_test

import (
	"context"
	"fmt"
	"os"

	"github.com/scijava/opsgate/pkg/gateway"
	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/starbind"
)

func Example() {
	ctx := context.Background()
	gw, err := gateway.Build(ctx, ops.NewBuiltinRegistry())
	if err != nil {
		fmt.Println(err)
		return
	}

	evaluator := starbind.NewEvaluator(gw, starbind.WithOutput(os.Stdout))
	result, err := evaluator.Exec(ctx, "example.star", `
total = ops.math.add(2, 3)
add = ops.math.add(0, 0, run=False)
print(add)
img = zeros([2, 2])
ops.image.fill(1.5, inplace=img)
print(img.tolist())
`)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(result.Output["total"])

	// Output:
	// <executor function math.add>
	// [[1.5, 1.5], [1.5, 1.5]]
	// 5
}
