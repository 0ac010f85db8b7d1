package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/odvcencio/consonant/pkg/document"
	"github.com/odvcencio/consonant/pkg/schema"
	"github.com/odvcencio/consonant/pkg/store"
)

func newNameCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "name",
		Short: "Print the store name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := env.storeCommit("")
			if err != nil {
				return err
			}
			name, err := s.Loader().Name(c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newSchemaCmd(env *cliEnv) *cobra.Command {
	var nameOnly bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema the store conforms to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := env.storeCommit("")
			if err != nil {
				return err
			}
			sch, err := s.Loader().Schema(c)
			if err != nil {
				return err
			}
			if nameOnly {
				fmt.Fprintln(cmd.OutOrStdout(), sch.Name)
				return nil
			}
			data, err := schema.Marshal(sch)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&nameOnly, "name", false, "print only the schema name")
	return cmd
}

func newServicesCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the service aliases of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := env.storeCommit("")
			if err != nil {
				return err
			}
			services, err := s.Loader().Services(c)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(services))
			for name := range services {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, services[name])
			}
			return nil
		},
	}
}

func newClassesCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List object classes and their object counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := env.storeCommit("")
			if err != nil {
				return err
			}
			classes, err := s.Loader().Classes(c)
			if err != nil {
				return err
			}
			for _, class := range classes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", class.Name, len(class.Objects))
			}
			return nil
		},
	}
}

func newObjectsCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "objects [class]",
		Short: "List objects, optionally of one class",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := env.storeCommit("")
			if err != nil {
				return err
			}

			var objs []*store.Object
			if len(args) == 1 {
				if objs, err = s.Loader().ClassObjects(c, args[0]); err != nil {
					return err
				}
			} else {
				byClass, err := s.Loader().Objects(c)
				if err != nil {
					return err
				}
				for _, list := range byClass {
					objs = append(objs, list...)
				}
			}

			sort.Slice(objs, func(i, j int) bool {
				if objs[i].Class.Name != objs[j].Class.Name {
					return objs[i].Class.Name < objs[j].Class.Name
				}
				return objs[i].UUID < objs[j].UUID
			})
			for _, obj := range objs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", obj.Class.Name, obj.UUID)
			}
			return nil
		},
	}
}

func newObjectCmd(env *cliEnv) *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "object <uuid>",
		Short: "Print the properties of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := env.storeCommit("")
			if err != nil {
				return err
			}
			obj, err := s.Loader().Object(c, args[0], class)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s %s\n", obj.Class.Name, obj.UUID)
			data, err := document.EncodeYAML(obj.Encode())
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "only look in this class")
	return cmd
}

func newRawCmd(env *cliEnv) *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "raw <uuid> <property>",
		Short: "Write the data of a raw property to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, c, err := env.storeCommit("")
			if err != nil {
				return err
			}
			obj, err := s.Loader().Object(c, args[0], class)
			if err != nil {
				return err
			}
			data, err := s.Loader().RawPropertyData(c, obj, args[1])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "only look in this class")
	return cmd
}
