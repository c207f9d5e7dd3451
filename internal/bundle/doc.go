// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package bundle describes the plugin bundles kbuild builds and loads them from plugin manifests.
//
// Every plugin directory holds a kbuild.yaml manifest naming the external bundler command and
// its output. Plugins are selected by a plugin list file (local path or any go-getter URL),
// by name (resolved under the plugin root) or by explicit directory.
package bundle
