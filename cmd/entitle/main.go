package main

import (
	"github.com/turtacn/entitle/cmd/cli"
)

// main is the entry point for the entitle command-line client.
// It delegates all execution to the Execute function provided by the cli package.
// main 是 entitle 命令行客户端的入口点。
// 它将所有执行委托给 cli 包提供的 Execute 函数。
func main() {
	cli.Execute()
}
