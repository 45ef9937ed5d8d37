package main

import "github.com/odyssey-erp/ledgercore/internal/store/postgres"

var migrate = postgres.Migrate
