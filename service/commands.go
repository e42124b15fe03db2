package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"postkeeper/app/repositories"
)

// HandleCommand handles db subcommands and returns an exit code.
func HandleCommand(args []string) int {
	cfg, rest, err := loadConfig("db", args, os.Stdout)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		osExit(1)
		return 1
	}
	if len(rest) < 1 {
		printDbHelp()
		osExit(1)
		return 1
	}

	dbPath := cfg.Server.DBPath
	cmd := rest[0]
	switch cmd {
	case "clean":
		clean(dbPath)
		return 0
	case "init":
		initDb(dbPath)
		return 0
	case "backup":
		backup(dbPath, backupDir(dbPath))
		return 0
	case "restore":
		if len(rest) < 2 {
			fmt.Println("Error: backup file path required for restore")
			osExit(1)
			return 1
		}
		return restore(dbPath, rest[1])
	case "stats":
		return stats(dbPath)
	case "help":
		printDbHelp()
		return 0
	default:
		fmt.Printf("Unknown db command: %s\n\n", cmd)
		printDbHelp()
		osExit(1)
		return 1
	}
}

// printDbHelp prints help for db subcommands.
func printDbHelp() {
	helpText := `Usage: postkeeper db [--config <file>] <command>

Commands:
  clean                           Remove the document store
  init                            Initialize a new empty document store
  backup                          Create a backup of the document store
  restore [file]                  Restore the document store from a backup
  stats                           Count stored posts, comments and import entries
  help                            Display this help message
`
	fmt.Println(helpText)
}

func backupDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "backups")
}

// clean removes the database.
func clean(dbPath string) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Database is already clean (does not exist)")
		return
	}

	fmt.Print("Are you sure you want to clean the database? This cannot be undone. [y/N] ")
	var response string
	fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		fmt.Println("Operation cancelled")
		return
	}

	if err := os.RemoveAll(dbPath); err != nil {
		fmt.Printf("Failed to clean database: %v\n", err)
		return
	}
	fmt.Println("Database cleaned successfully")
}

// initDb initializes a new empty database.
func initDb(dbPath string) {
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Database already exists. Use 'clean' first if you want to reinitialize.")
		return
	}

	repo, err := repositories.NewRepository(repositories.Options{Path: dbPath, Logger: quietLogger()})
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		return
	}
	defer repo.Close()

	fmt.Println("Database initialized successfully")
}

// backup writes a badger backup of the database into dir.
func backup(dbPath, dir string) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No database exists to backup")
		return
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Failed to create backup directory: %v\n", err)
		return
	}

	repo, err := repositories.NewRepository(repositories.Options{Path: dbPath, Logger: quietLogger()})
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return
	}
	defer repo.Close()

	backupFile := filepath.Join(dir, fmt.Sprintf("backup_%d.db", time.Now().UnixNano()))
	f, err := os.Create(backupFile)
	if err != nil {
		fmt.Printf("Failed to create backup file: %v\n", err)
		return
	}
	defer f.Close()

	if _, err := repo.DB().Backup(f, 0); err != nil {
		fmt.Printf("Failed to backup database: %v\n", err)
		return
	}

	fmt.Printf("Database backed up successfully to %s\n", backupFile)
}

// restore restores the database from a backup.
func restore(dbPath, backupFile string) int {
	if _, err := os.Stat(backupFile); os.IsNotExist(err) {
		fmt.Printf("Backup file does not exist: %s\n", backupFile)
		return 1
	}

	if _, err := os.Stat(dbPath); err == nil {
		fmt.Print("Existing database found. Do you want to replace it? [y/N] ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Operation cancelled")
			return 1
		}
		if err := os.RemoveAll(dbPath); err != nil {
			fmt.Printf("Failed to remove existing database: %v\n", err)
			return 1
		}
	}

	f, err := os.Open(backupFile)
	if err != nil {
		fmt.Printf("Failed to open backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		fmt.Printf("Failed to stat backup file: %v\n", err)
		return 1
	}
	if fi.Size() == 0 {
		fmt.Printf("Backup file is empty: %s\n", backupFile)
		return 1
	}

	repo, err := repositories.NewRepository(repositories.Options{Path: dbPath, Logger: quietLogger()})
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer repo.Close()

	err = func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic occurred during restore: %v", r)
			}
		}()
		return repo.DB().Load(f, 4)
	}()
	if err != nil {
		fmt.Printf("Failed to restore database: %v\n", err)
		return 1
	}

	fmt.Println("Database restored successfully")
	return 0
}

// stats prints document counts per key prefix.
func stats(dbPath string) int {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No database exists")
		return 1
	}

	repo, err := repositories.NewRepository(repositories.Options{Path: dbPath, Logger: quietLogger()})
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer repo.Close()

	counts, err := repo.Stats()
	if err != nil {
		fmt.Printf("Failed to read database: %v\n", err)
		return 1
	}
	fmt.Printf("posts: %d\ncomments: %d\nimports: %d\n", counts.Posts, counts.Comments, counts.Imports)
	return 0
}
