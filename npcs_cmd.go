package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/talkbox/internal/npc"
	"github.com/spf13/cobra"
)

var showPortraits bool

var npcsCmd = &cobra.Command{
	Use:     "npcs [QUERY]",
	Short:   "List the characters you can talk to",
	Long:    paragraph(fmt.Sprintf("\n%s the npcs in the roster, best match first when a query is given.", keyword("List"))),
	Example: paragraph("talkbox npcs\ntalkbox npcs harrow --portraits"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := loadRoster(opts.NPCDir)
		if err != nil {
			return err
		}

		var query string
		if len(args) == 1 {
			query = args[0]
		}
		matches := roster.Find(query)
		if len(matches) == 0 {
			return fmt.Errorf("no npc matches %q", query)
		}
		return printNPCs(cmd.OutOrStdout(), matches, showPortraits)
	},
}

func printNPCs(w io.Writer, npcs []npc.NPC, portraits bool) error {
	for i, n := range npcs {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		line := fmt.Sprintf("%s %s (%s)", keyword(" "+n.ID+" "), n.Title(), n.Personality.Personality)
		if len(n.Traits) > 0 {
			line += " " + subtle(strings.Join(n.Traits, ", "))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if portraits && n.Portrait != "" {
			if _, err := fmt.Fprintln(w, strings.TrimRight(n.Portrait, "\n")); err != nil {
				return err
			}
		}
	}
	return nil
}

func init() {
	npcsCmd.Flags().BoolVarP(&showPortraits, "portraits", "p", false, "show portraits")
}
