// Package controller is the user-facing side of a collection. It starts a
// run, waits for the single message that answers it, exports the links of a
// successful run and tells the user what happened.
//
// Only one request can be pending at a time. While it is pending a second
// Collect is rejected, the same way a disabled button cannot be clicked.
package controller
