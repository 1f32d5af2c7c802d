// Command fatwactl 是检索引擎的运维命令行工具。
package main

import "fatwa-rag-go/internal/cli"

func main() {
	cli.Execute()
}
