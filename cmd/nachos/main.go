package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dantenoguera/nachOS/disk"
	"github.com/dantenoguera/nachOS/fs"
	"github.com/dantenoguera/nachOS/fusefs"
)

func openFs(c *cli.Context, format bool) (*fs.FileSystem, *disk.FileDisk, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	image := cfg.Image
	if c.String("image") != "" {
		image = c.String("image")
	}
	d, err := disk.OpenImage(image)
	if err != nil {
		return nil, nil, err
	}
	fsys, err := fs.New(d, format)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	return fsys, d, nil
}

func main() {
	imageFlag := &cli.StringFlag{
		Name:    "image",
		Aliases: []string{"i"},
		Usage:   "path to the disk image",
	}

	app := &cli.App{
		Name:  "nachos",
		Usage: "poke at a nachos filesystem image",
		Flags: []cli.Flag{imageFlag},
		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "lay out a fresh filesystem on the image",
				Action: func(c *cli.Context) error {
					fsys, d, err := openFs(c, true)
					if err != nil {
						return err
					}
					defer d.Close()
					return fsys.Check(0)
				},
			},
			{
				Name:  "check",
				Usage: "run the integrity sweep",
				Action: func(c *cli.Context) error {
					fsys, d, err := openFs(c, false)
					if err != nil {
						return err
					}
					defer d.Close()
					if err := fsys.Check(0); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Println("filesystem check succeeded")
					return nil
				},
			},
			{
				Name:      "ls",
				Usage:     "list a directory",
				ArgsUsage: "[path]",
				Action: func(c *cli.Context) error {
					fsys, d, err := openFs(c, false)
					if err != nil {
						return err
					}
					defer d.Close()
					if p := c.Args().First(); p != "" {
						if err := fsys.ChangeDir(0, p); err != nil {
							return err
						}
					}
					entries, err := fsys.List(0)
					if err != nil {
						return err
					}
					for _, e := range entries {
						if e.IsDir {
							fmt.Printf("%s/\n", e.Name())
						} else {
							fmt.Println(e.Name())
						}
					}
					return nil
				},
			},
			{
				Name:  "print",
				Usage: "dump filesystem state",
				Action: func(c *cli.Context) error {
					fsys, d, err := openFs(c, false)
					if err != nil {
						return err
					}
					defer d.Close()
					return fsys.Print(0, os.Stdout)
				},
			},
			{
				Name:  "shell",
				Usage: "interactive session against the image",
				Action: func(c *cli.Context) error {
					fsys, d, err := openFs(c, false)
					if err != nil {
						return err
					}
					defer d.Close()
					return runShell(fsys)
				},
			},
			{
				Name:      "mount",
				Usage:     "serve the image over FUSE",
				ArgsUsage: "[mountpoint]",
				Action: func(c *cli.Context) error {
					cfg, err := LoadConfig()
					if err != nil {
						return err
					}
					mp := cfg.MountPoint
					if c.Args().First() != "" {
						mp = c.Args().First()
					}
					if mp == "" {
						return cli.Exit("no mountpoint given", 1)
					}
					fsys, d, err := openFs(c, false)
					if err != nil {
						return err
					}
					defer d.Close()
					return fusefs.Mount(mp, fsys, 0)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
