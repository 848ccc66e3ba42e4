package main

import "quillhaven/quill/cmd"

func main() {
	cmd.Execute()
}
