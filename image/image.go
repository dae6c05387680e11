/*
Package image implements an npxl decoder and encoder.

An npxl file is plain text. The first line holds the width and height of the
image, the second line holds the numeric base (2 to 36) used for every digit
and the number of digits that make up one pixel. Every following line is one
row of the image, top to bottom:

	2 2
	16 3
	f000f0
	00ffff

With one digit per pixel the value is used for all three channels, giving a
grey image. With more than one digit per pixel the first three are red, green
and blue and any further digits are ignored. Digits that are not valid in the
declared base are read as zero, so a damaged file still produces an image.

Digits are scaled to 8 bits by a fixed proportion of the base, see Mode.
*/
package image

const (
	minBase = 2
	maxBase = 36

	headerLines = 2

	// Extension is the file extension used for npxl files
	Extension = ".npxl"
)
