// Package rewriter applies in-place source patches for common
// Shadertoy/desktop-GLSL mismatches before a pass is compiled.
package rewriter

import (
	"strings"

	"github.com/shadermp/engine/scanner"
)

// swizzleChars are the characters endsInSwizzle accepts as a trailing
// swizzle access, which marks an expression as already reduced to its
// xy (or narrower) components.
const swizzleChars = "xyzwrgbastp"

// Rewrite applies both compatibility patches to src and returns the
// patched source. It is a single linear pass in each case; neither
// patch is applied recursively to its own output.
func Rewrite(src string) string {
	src = rewriteChannelResolutionIndex(src)
	src = rewriteTextureChannelCall(src)
	return src
}

// rewriteChannelResolutionIndex appends ".xy" to every
// `iChannelResolution[N]` occurrence that is not already followed by a
// '.' or '[' accessor.
func rewriteChannelResolutionIndex(src string) string {
	var out strings.Builder
	pos := 0
	for {
		off := scanner.FindPattern(src, "iChannelResolution[", pos)
		if off < 0 {
			out.WriteString(src[pos:])
			break
		}
		closeBracket := strings.IndexByte(src[off:], ']')
		if closeBracket < 0 {
			out.WriteString(src[pos:])
			break
		}
		end := off + closeBracket + 1
		out.WriteString(src[pos:end])
		if end < len(src) && (src[end] == '.' || src[end] == '[') {
			// already has an accessor; leave it alone
		} else {
			out.WriteString(".xy")
		}
		pos = end
	}
	return out.String()
}

// rewriteTextureChannelCall rewrites `texture(iChannelN, <expr>)` into
// `texture(iChannelN, (<expr>).xy)` unless <expr> already ends in a
// recognized swizzle.
func rewriteTextureChannelCall(src string) string {
	var out strings.Builder
	pos := 0
	for {
		off := scanner.FindPattern(src, "texture(iChannel", pos)
		if off < 0 {
			out.WriteString(src[pos:])
			break
		}

		// Parse the channel digit and the comma that follows it.
		digitStart := off + len("texture(iChannel")
		i := digitStart
		for i < len(src) && src[i] >= '0' && src[i] <= '9' {
			i++
		}
		if i == digitStart {
			// not actually "iChannel<N>"; copy verbatim and keep scanning
			out.WriteString(src[pos : off+len("texture(iChannel")])
			pos = off + len("texture(iChannel")
			continue
		}
		j := i
		for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
			j++
		}
		if j >= len(src) || src[j] != ',' {
			out.WriteString(src[pos:i])
			pos = i
			continue
		}
		argStart := j + 1

		argEnd, ok := findArgEnd(src, argStart)
		if !ok {
			out.WriteString(src[pos:argStart])
			pos = argStart
			continue
		}

		arg := src[argStart:argEnd]
		expr := strings.TrimSpace(arg)
		closeParen := strings.IndexByte(src[argEnd:], ')')
		if closeParen < 0 {
			out.WriteString(src[pos:argEnd])
			pos = argEnd
			continue
		}
		fullEnd := argEnd + closeParen + 1

		if endsInSwizzle(expr) {
			out.WriteString(src[pos:fullEnd])
		} else {
			// keep the whitespace that followed the comma
			leading := len(arg) - len(strings.TrimLeft(arg, " \t\r\n"))
			out.WriteString(src[pos : argStart+leading])
			out.WriteString("(")
			out.WriteString(expr)
			out.WriteString(").xy")
			out.WriteString(src[argEnd:fullEnd])
		}
		pos = fullEnd
	}
	return out.String()
}

// findArgEnd scans from argStart (just after the leading comma) for
// the matching closing ')' of the texture(...) call, or a top-level
// ',' (a third argument, e.g. an explicit LOD bias) - whichever comes
// first, respecting nested parens.
func findArgEnd(src string, argStart int) (int, bool) {
	depth := 0
	for i := argStart; i < len(src); i++ {
		switch src[i] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i, true
			}
			depth--
		case ',':
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// endsInSwizzle reports whether expr ends in a run of 1-4 swizzle
// letters preceded by a '.', meaning it has already been reduced to a
// vector the rewrite need not touch.
func endsInSwizzle(expr string) bool {
	dot := strings.LastIndexByte(expr, '.')
	if dot < 0 {
		return false
	}
	suffix := expr[dot+1:]
	if len(suffix) == 0 || len(suffix) > 4 {
		return false
	}
	for _, c := range suffix {
		if !strings.ContainsRune(swizzleChars, c) {
			return false
		}
	}
	return true
}
