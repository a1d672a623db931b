package sse

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Stream writes raw SSE lines in the form:
//
//	data: <token>\n\n
//
// and finishes with:
//
//	data: [DONE]\n\n
//
// Streaming stops early when the client goes away.
func Stream(c *gin.Context, ch <-chan string) {
	StreamThen(c, ch, nil)
}

// StreamThen is Stream with a trailing named event sent right before [DONE].
// then runs once ch is closed; an empty name skips the event.
func StreamThen(c *gin.Context, ch <-chan string, then func() (name, data string)) {
	start(c)
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case msg, open := <-ch:
			if !open {
				if then != nil {
					if name, data := then(); name != "" {
						_, _ = c.Writer.Write([]byte("event: " + name + "\n"))
						writeEvent(c, data)
					}
				}
				_, _ = c.Writer.Write([]byte("data: [DONE]\n\n"))
				flusher.Flush()
				return
			}
			writeEvent(c, msg)
			flusher.Flush()
		}
	}
}

// Event sends one named event, e.g. the session id before the answer tokens.
func Event(c *gin.Context, name, data string) {
	start(c)
	_, _ = c.Writer.Write([]byte("event: " + name + "\n"))
	writeEvent(c, data)
	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}
}

func start(c *gin.Context) {
	if c.Writer.Written() {
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.WriteHeaderNow()
}

// writeEvent prefixes every line with "data: " so multi-line chunks survive;
// the line breaks themselves stay inside the tokens.
func writeEvent(c *gin.Context, msg string) {
	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		token := line
		if i < len(lines)-1 {
			token += "\n"
		}
		_, _ = c.Writer.Write([]byte("data: " + token + "\n"))
	}
	_, _ = c.Writer.Write([]byte("\n"))
}
