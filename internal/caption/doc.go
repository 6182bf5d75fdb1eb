// Package caption lays out subtitle text and burns it into video frames.
//
// Layout is deterministic and depends only on a width measurement function,
// the frame size, and the caption settings: text wraps greedily on
// whitespace at 90% of the frame width, lines are centered horizontally, and
// the block sits a fixed margin above the bottom edge. The Compositor pairs
// a Layout with a loaded Face and a subtitle track to produce the frame for
// a given timestamp.
package caption
