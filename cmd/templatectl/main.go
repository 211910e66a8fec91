package main

import "github.com/yourorg/course-template-service/internal/cli"

func main() {
	cli.Execute()
}
