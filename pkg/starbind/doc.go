// Package starbind exposes a gateway to Starlark scripts.
//
// The global name "ops" is bound to the gateway root. Namespaces are reached
// with attribute access and operations are called like functions:
//
//	x = ops.math.add(2, 3)                  # 5.0
//	f = ops.math.add(2, 3, run=False)       # executor, not yet run
//	y = f(10, 20)                           # replaces the bound inputs
//	img = zeros([2, 3], dtype="uint8")
//	ops.image.fill(7, inplace=img)
//	help("math.add")
//
// Host arrays appear as values of type "array" with shape, dtype, size and
// ndim attributes and tolist, fill and copy methods. Integers passed to
// operations arrive as int64; numeric results come back as floats.
//
// Scripts run with a timeout (DefaultTimeout unless configured). After a run,
// public globals that are not functions or namespaces are returned in
// Result.Output, with arrays unwrapped to *ndarray.Array.
package starbind
