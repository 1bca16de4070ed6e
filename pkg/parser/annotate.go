package parser

import "strings"

// AnnotationPrefix marks lines added by AnnotateError.
const AnnotationPrefix = "# error: "

// AnnotateError returns source with err's message prepended as comment
// lines. The user's text is kept verbatim so nothing unparsed is lost; a
// previous annotation at the top of source is replaced rather than stacked.
func AnnotateError(source string, err error) string {
	if err == nil {
		return source
	}
	var b strings.Builder
	for _, line := range strings.Split(err.Error(), "\n") {
		b.WriteString(AnnotationPrefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(StripAnnotations(source))
	return b.String()
}

// StripAnnotations removes leading lines written by AnnotateError.
func StripAnnotations(source string) string {
	for strings.HasPrefix(source, AnnotationPrefix) {
		i := strings.IndexByte(source, '\n')
		if i < 0 {
			return ""
		}
		source = source[i+1:]
	}
	return source
}
