package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zym9863/Dream-s-Exit/internal/model"
)

type memoryFlags struct {
	title, content, image, music, musicTitle string
}

func (f *memoryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Title (at most 100 characters)")
	cmd.Flags().StringVarP(&f.content, "content", "c", "", "Content")
	cmd.Flags().StringVar(&f.image, "image", "", "Image link")
	cmd.Flags().StringVar(&f.music, "music", "", "Music link")
	cmd.Flags().StringVar(&f.musicTitle, "music-title", "", "Music title")
}

// overlay applies only the flags the user set on top of base.
func (f *memoryFlags) overlay(cmd *cobra.Command, base model.MemoryFields) model.MemoryFields {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("title", &base.Title, f.title)
	set("content", &base.Content, f.content)
	set("image", &base.ImageURL, f.image)
	set("music", &base.MusicURL, f.music)
	set("music-title", &base.MusicTitle, f.musicTitle)
	return base
}

func newMemoriesCmd(a *app) *cobra.Command {
	memoriesCmd := &cobra.Command{Use: "memories", Short: "Memory journal operations"}

	// list
	memoriesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			out, err := c.ListMemories(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(out)
		},
	})

	// get
	memoriesCmd.AddCommand(&cobra.Command{
		Use:   "get MEMORY_ID",
		Short: "Get a memory by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			out, err := c.GetMemory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(out)
		},
	})

	// create
	var cf memoryFlags
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Record a memory owned by the local identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			out, err := c.CreateMemory(cmd.Context(), a.identity.GetOrCreate(), cf.overlay(cmd, model.MemoryFields{}))
			if err != nil {
				return err
			}
			return a.printJSON(out)
		},
	}
	cf.bind(createCmd)
	memoriesCmd.AddCommand(createCmd)

	// update
	var uf memoryFlags
	updateCmd := &cobra.Command{
		Use:   "update MEMORY_ID",
		Short: "Edit a memory; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			cur, err := c.GetMemory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			base := model.MemoryFields{
				Title:      cur.Title,
				Content:    cur.Content,
				ImageURL:   cur.ImageURL,
				MusicURL:   cur.MusicURL,
				MusicTitle: cur.MusicTitle,
			}
			out, err := c.UpdateMemory(cmd.Context(), args[0], uf.overlay(cmd, base))
			if err != nil {
				return err
			}
			return a.printJSON(out)
		},
	}
	uf.bind(updateCmd)
	memoriesCmd.AddCommand(updateCmd)

	// delete
	memoriesCmd.AddCommand(&cobra.Command{
		Use:   "delete MEMORY_ID",
		Short: "Delete a memory permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			n, err := c.DeleteMemory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "deleted %d\n", n)
			return nil
		},
	})

	return memoriesCmd
}
