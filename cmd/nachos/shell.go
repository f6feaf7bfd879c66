package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dantenoguera/nachOS/fs"
)

// runShell drives one Proc interactively. Commands mirror the syscall
// surface; file descriptors are plain numbers echoed back by open.
func runShell(fsys *fs.FileSystem) error {
	proc := fsys.NewProc(0)
	defer proc.Exit()

	rdr := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for rdr.Scan() {
		args := strings.Fields(rdr.Text())
		if len(args) == 0 {
			fmt.Print("> ")
			continue
		}

		switch args[0] {
		case "create":
			if len(args) != 3 {
				goto badcmd
			}
			size, err := strconv.Atoi(args[2])
			if err != nil {
				goto badcmd
			}
			if proc.Create(args[1], size) < 0 {
				fmt.Println("create failed")
			}

		case "open":
			if len(args) != 2 {
				goto badcmd
			}
			fd := proc.Open(args[1])
			if fd < 0 {
				fmt.Println("open failed")
			} else {
				fmt.Printf("fd %d\n", fd)
			}

		case "close":
			if len(args) != 2 {
				goto badcmd
			}
			fd, err := strconv.Atoi(args[1])
			if err != nil || proc.Close(fd) < 0 {
				fmt.Println("close failed")
			}

		case "write":
			if len(args) < 3 {
				goto badcmd
			}
			fd, err := strconv.Atoi(args[1])
			if err != nil {
				goto badcmd
			}
			data := strings.Join(args[2:], " ")
			n := proc.Write(fd, []byte(data))
			if n < 0 {
				fmt.Println("write failed")
			} else {
				fmt.Printf("wrote %d bytes\n", n)
			}

		case "read":
			if len(args) != 3 {
				goto badcmd
			}
			fd, err := strconv.Atoi(args[1])
			if err != nil {
				goto badcmd
			}
			count, err := strconv.Atoi(args[2])
			if err != nil || count < 0 {
				goto badcmd
			}
			buf := make([]byte, count)
			n := proc.Read(fd, buf)
			if n < 0 {
				fmt.Println("read failed")
			} else {
				fmt.Printf("%q\n", buf[:n])
			}

		case "seek":
			if len(args) != 3 {
				goto badcmd
			}
			fd, err := strconv.Atoi(args[1])
			if err != nil {
				goto badcmd
			}
			pos, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil || proc.Seek(fd, pos) < 0 {
				fmt.Println("seek failed")
			}

		case "rm":
			if len(args) != 2 {
				goto badcmd
			}
			if proc.Remove(args[1]) < 0 {
				fmt.Println("rm failed (an open file is only tombstoned)")
			}

		case "mkdir":
			if len(args) != 2 {
				goto badcmd
			}
			if proc.CreateDir(args[1]) < 0 {
				fmt.Println("mkdir failed")
			}

		case "rmdir":
			if len(args) != 2 {
				goto badcmd
			}
			if proc.RemoveDir(args[1]) < 0 {
				fmt.Println("rmdir failed")
			}

		case "cd":
			if len(args) != 2 {
				goto badcmd
			}
			if proc.ChangeDir(args[1]) < 0 {
				fmt.Println("cd failed")
			}

		case "ls":
			for _, name := range proc.List() {
				fmt.Println(name)
			}

		case "check":
			if err := fsys.Check(0); err != nil {
				fmt.Println(err)
			} else {
				fmt.Println("ok")
			}

		case "print":
			fsys.Print(0, os.Stdout)

		case "quit", "exit":
			return nil

		default:
			goto badcmd
		}
		fmt.Print("> ")
		continue

	badcmd:
		fmt.Println("invalid arguments!")
		fmt.Print("> ")
	}
	return rdr.Err()
}
