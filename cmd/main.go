package main

import (
	"os"
)

func main() {
	root, a := newRootCommand(os.Stdout)
	err := root.Execute()
	// RunE 返回错误时 cobra 不会执行 PostRun，这里统一释放资源
	a.close()
	if err != nil {
		os.Exit(1)
	}
}
