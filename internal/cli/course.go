package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	course := &cobra.Command{
		Use:   "course",
		Short: "Manage courses",
	}

	course.AddCommand(&cobra.Command{
		Use:   "enable <course-id>",
		Short: "Enable a course and every exercise under it",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { setCourse(cmd, args[0], true) },
	})
	course.AddCommand(&cobra.Command{
		Use:   "disable <course-id>",
		Short: "Disable a course and every exercise under it",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { setCourse(cmd, args[0], false) },
	})

	RootCmd.AddCommand(course)
}

func setCourse(cmd *cobra.Command, id string, enabled bool) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.SetCourseEnabled(cmd.Context(), id, enabled)
	if err != nil {
		exitErr("set course", err)
	}
	log.Info("course toggled", "course_id", id, "enabled", enabled, "exercises", n)

	printJSON(map[string]any{"ok": true, "course_id": id, "enabled": enabled, "exercises": n})
}
