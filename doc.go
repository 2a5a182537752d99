// Package ctrcia packages Nintendo 3DS CDN content into CIA containers and
// decrypts CIA files for use outside retail hardware, also known as CTR.
//
// A CIA bundles a ticket, a title metadata file (TMD) and a set of content
// files, each of which may be an NCCH partition encrypted under a key
// derived from the console's keyslots. Packing builds that container from
// loose CDN downloads; decrypting strips the NCCH crypto so the result can
// be consumed directly by software that does not hold the platform keys.
//
// This package comes with a CLI. You can install it like this:
//   go get github.com/hax0kartik/ctrcia/cmd/ctrcia
package ctrcia
