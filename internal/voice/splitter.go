package voice

import (
	"context"
	"strings"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/audio"
)

// splitSentences accumulates text deltas and forwards complete sentences to
// textCh so synthesis can start before the model finishes its reply. The
// remainder is flushed when deltas closes, then textCh is closed to end the
// TTS stream. On cancellation the delta channel is drained in the background
// so the producer does not block.
func splitSentences(ctx context.Context, deltas <-chan string, textCh chan<- string) {
	defer close(textCh)

	var buf strings.Builder
	for {
		select {
		case <-ctx.Done():
			go audio.Drain(deltas)
			return
		case delta, ok := <-deltas:
			if !ok {
				if buf.Len() > 0 {
					select {
					case textCh <- buf.String():
					case <-ctx.Done():
					}
				}
				return
			}
			if delta == "" {
				continue
			}
			buf.WriteString(delta)

			for {
				idx := sentenceBoundary(buf.String())
				if idx < 0 {
					break
				}
				text := buf.String()
				sentence := text[:idx+1]
				rest := strings.TrimLeft(text[idx+1:], " \t\n\r")
				buf.Reset()
				buf.WriteString(rest)

				select {
				case textCh <- sentence:
				case <-ctx.Done():
					go audio.Drain(deltas)
					return
				}
			}
		}
	}
}

// sentenceBoundary returns the index of the first sentence-ending punctuation
// mark that is followed by whitespace, or -1 if the text holds no complete
// sentence yet. Requiring trailing whitespace avoids splitting on decimals
// ("2.5 minutes") and abbreviations mid-stream.
func sentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\n', '\r', '\t':
				return i
			}
		}
	}
	return -1
}
