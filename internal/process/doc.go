// Package process starts and supervises subprocesses such as ffmpeg.
//
// Exec launches a binary in its own process group and returns a Child:
//   - combined stdout and stderr delivered line by line on Lines
//   - the exit error on Done, after all output has been read
//   - Terminate (SIGINT) and Kill (SIGKILL) addressed to the whole group
//   - diagnostic lines logged at the level a LogParser extracts
//
// Registry tracks which children are alive for status reporting.
//
// Consumers must keep reading Lines until it is closed; Done fires only
// after both output streams reach EOF.
//
//	child, err := exec.Launch(ctx, "clip.mp4/9x16", args)
//	for line := range child.Lines() {
//	    handle(line)
//	}
//	err = <-child.Done()
package process
